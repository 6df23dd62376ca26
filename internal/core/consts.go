package core

// Night death message, used in the form:
// <PLAYER> <DEATH_MESSAGE> the next morning.
var nightDeathMessages = []string{
	"was found strangled by an untyped python",
	"was found brutally beat with a mechanical keyboard",
	"was found poisoned from eating expired ketchup",
	"never made it home because of 101 traffic",
	"was found pummelled by what appears to have been a gorilla",
	"was found unresponsive next to a beer tower",
}

// Day death message, used in the form:
// <PLAYER> <DEATH_MESSAGE> that day.
var dayDeathMessages = []string{
	"was hung for their unforgivable sins",
}
