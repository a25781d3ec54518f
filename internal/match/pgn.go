package match

import (
	"fmt"
	"strings"
	"time"

	"github.com/JalenduP/Chess-it/internal/domain"
)

func pgnResult(r domain.Result) string {
	switch r {
	case domain.ResultWhiteWins:
		return "1-0"
	case domain.ResultBlackWins:
		return "0-1"
	case domain.ResultDraw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

// buildPGN renders the archived movetext with standard tag pairs.
func buildPGN(g *domain.Game) string {
	var b strings.Builder
	date := g.CompletedAt
	if date.IsZero() {
		date = time.Now()
	}
	result := pgnResult(g.Result)

	b.WriteString("[Event \"Chess.it Game\"]\n")
	b.WriteString("[Site \"Chess.it\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(g.WhiteName))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(g.BlackName))
	fmt.Fprintf(&b, "[TimeControl \"%s\"]\n", g.TimeControl)
	if g.Reason != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", g.Reason)
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	for i, m := range g.Moves {
		if i%2 == 0 {
			fmt.Fprintf(&b, "%d. ", i/2+1)
		}
		b.WriteString(strings.TrimSpace(m.SAN))
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
