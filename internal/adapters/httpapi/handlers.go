package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/mafia/internal/core"
	"github.com/dkeye/mafia/internal/domain"
	"github.com/dkeye/mafia/internal/wire"
)

// Controller exposes the server facade over HTTP.
type Controller struct {
	Server *core.Server
}

func NewController(server *core.Server) *Controller {
	return &Controller{Server: server}
}

// abortWithError maps facade errors onto HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidSessionToken),
		errors.Is(err, core.ErrClientDisconnected):
		status = http.StatusUnauthorized
	case errors.Is(err, core.ErrInvalidClientID):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrNameRegistered),
		errors.Is(err, core.ErrTooManyClients),
		errors.Is(err, core.ErrGameInProgress),
		errors.Is(err, core.ErrNoGameInProgress):
		status = http.StatusConflict
	case errors.Is(err, core.ErrInvalidVote),
		errors.Is(err, core.ErrInvalidGameConfig),
		errors.Is(err, core.ErrNotEnoughPlayers):
		status = http.StatusBadRequest
	}

	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// bearerToken extracts the session token from the Authorization header, or
// from the token query parameter as a websocket fallback.
func bearerToken(c *gin.Context) (domain.SessionToken, error) {
	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if raw == "" {
		raw = c.Query("token")
	}
	return domain.ParseSessionToken(raw)
}

type connectRequest struct {
	Name string `json:"name" binding:"required"`
}

func (ctl *Controller) Connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, token, err := ctl.Server.ConnectClient(req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            id,
		"session_token": token.String(),
	})
}

func (ctl *Controller) Disconnect(c *gin.Context) {
	token, err := bearerToken(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	if err := ctl.Server.DisconnectClient(token); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type messageRequest struct {
	Contents string `json:"contents" binding:"required"`
}

func (ctl *Controller) SendMessage(c *gin.Context) {
	token, err := bearerToken(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ctl.Server.SendMessage(token, req.Contents); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type voteRequest struct {
	// Target is the voted client id; null means an explicit skip.
	Target *domain.ClientID `json:"target"`
}

func (ctl *Controller) CastVote(c *gin.Context) {
	token, err := bearerToken(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ctl.Server.CastVote(token, req.Target); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Events drains the caller's inbox over plain HTTP for clients without a
// websocket.
func (ctl *Controller) Events(c *gin.Context) {
	token, err := bearerToken(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	events, err := ctl.Server.TakeEvents(token)
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]json.RawMessage, 0, len(events))
	for _, ev := range events {
		raw, err := wire.Encode(ev)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.httpapi").Msg("encode event")
			continue
		}
		out = append(out, raw)
	}
	c.JSON(http.StatusOK, gin.H{"events": out})
}

type startGameRequest struct {
	StartCycle            string `json:"start_cycle"`
	TimeForDaySecs        int64  `json:"time_for_day_secs"`
	EndDayAfterAllVotes   bool   `json:"end_day_after_all_votes"`
	TimeForNightSecs      int64  `json:"time_for_night_secs"`
	EndNightAfterAllVotes bool   `json:"end_night_after_all_votes"`
	NumMafia              int    `json:"num_mafia"`
	NumDoctors            int    `json:"num_doctors"`
	NumDetectives         int    `json:"num_detectives"`
	VoteGracePeriodMillis int64  `json:"vote_grace_period_millis"`
}

func (ctl *Controller) StartGame(c *gin.Context) {
	var req startGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	startCycle := domain.CycleDay
	if req.StartCycle == domain.CycleNight.String() {
		startCycle = domain.CycleNight
	}

	config := core.GameConfig{
		StartCycle:            startCycle,
		TimeForDay:            time.Duration(req.TimeForDaySecs) * time.Second,
		EndDayAfterAllVotes:   req.EndDayAfterAllVotes,
		TimeForNight:          time.Duration(req.TimeForNightSecs) * time.Second,
		EndNightAfterAllVotes: req.EndNightAfterAllVotes,
		NumSpecialRoles: map[domain.SpecialRole]int{
			domain.RoleMafia:     req.NumMafia,
			domain.RoleDoctor:    req.NumDoctors,
			domain.RoleDetective: req.NumDetectives,
		},
		VoteGracePeriod: time.Duration(req.VoteGracePeriodMillis) * time.Millisecond,
	}

	if err := ctl.Server.StartGame(config, core.NewSeededRand(time.Now().UnixNano())); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ctl *Controller) EndGame(c *gin.Context) {
	if err := ctl.Server.EndGame(); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type broadcastRequest struct {
	Contents string `json:"contents" binding:"required"`
}

func (ctl *Controller) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctl.Server.BroadcastMessage(req.Contents)
	c.Status(http.StatusNoContent)
}

type kickRequest struct {
	Client domain.ClientID `json:"client"`
}

func (ctl *Controller) Kick(c *gin.Context) {
	var req kickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ctl.Server.ForceDisconnectClient(req.Client); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
