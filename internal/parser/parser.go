package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidewatch/battlecore/internal/geo"
	"github.com/tidewatch/battlecore/internal/util"
)

// ErrMissingArgs is returned when a command carries fewer arguments than it needs.
var ErrMissingArgs = errors.New("missing arguments")

// parseIntFromFloat parses a string that may be an integer ("4") or float ("4.00") into int64.
// Clients built on scripting hosts without an integer type send whole numbers as floats.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// Parser provides pure []string -> request conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

// clean normalizes raw args and checks the minimum count.
func clean(data []string, want int) ([]string, error) {
	if len(data) < want {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrMissingArgs, len(data), want)
	}
	return util.CleanArgs(data), nil
}

// arg returns data[i] or "" when the optional argument is absent.
func arg(data []string, i int) string {
	if i < len(data) {
		return data[i]
	}
	return ""
}

// ParseSession parses [sessionId, objective, weather].
// An empty session id asks the manager to generate one; objective and weather are optional.
func (p *Parser) ParseSession(data []string) (SessionRequest, error) {
	data = util.CleanArgs(data)
	req := SessionRequest{
		SessionID: arg(data, 0),
		Objective: arg(data, 1),
		Weather:   arg(data, 2),
	}
	if req.Objective == "" {
		req.Objective = "destroy_all"
	}
	return req, nil
}

// ParseSessionRef parses [sessionId] for commands that address a whole session.
func (p *Parser) ParseSessionRef(data []string) (string, error) {
	data, err := clean(data, 1)
	if err != nil {
		return "", err
	}
	if data[0] == "" {
		return "", errors.New("session id is empty")
	}
	return data[0], nil
}

// ParseStart parses [sessionId, requesterId].
func (p *Parser) ParseStart(data []string) (StartRequest, error) {
	data, err := clean(data, 2)
	if err != nil {
		return StartRequest{}, err
	}
	return StartRequest{SessionID: data[0], RequesterID: data[1]}, nil
}

// ParseActor parses [sessionId, combatantId] for end-turn and launch commands.
func (p *Parser) ParseActor(data []string) (ActorRequest, error) {
	data, err := clean(data, 2)
	if err != nil {
		return ActorRequest{}, err
	}
	return ActorRequest{SessionID: data[0], CombatantID: data[1]}, nil
}

// ParsePlace parses [sessionId, combatantId, "x,y"].
func (p *Parser) ParsePlace(data []string) (PlaceRequest, error) {
	data, err := clean(data, 3)
	if err != nil {
		return PlaceRequest{}, err
	}
	pos, err := geo.PositionFromString(data[2])
	if err != nil {
		return PlaceRequest{}, fmt.Errorf("error parsing position %q: %w", data[2], err)
	}
	return PlaceRequest{SessionID: data[0], CombatantID: data[1], Pos: pos}, nil
}

// ParseMove parses [sessionId, combatantId, destination]. The destination is either
// "x,y" or a JSON route "[[x1,y1],[x2,y2]]" whose last waypoint is the target cell.
func (p *Parser) ParseMove(data []string) (MoveRequest, error) {
	data, err := clean(data, 3)
	if err != nil {
		return MoveRequest{}, err
	}
	req := MoveRequest{SessionID: data[0], CombatantID: data[1]}

	dest := data[2]
	if strings.HasPrefix(dest, "[") {
		route, err := geo.ParseRoute(dest)
		if err != nil {
			return MoveRequest{}, fmt.Errorf("error parsing route: %w", err)
		}
		req.Route = route
		req.To = route[len(route)-1]
		return req, nil
	}

	pos, err := geo.PositionFromString(dest)
	if err != nil {
		return MoveRequest{}, fmt.Errorf("error parsing destination %q: %w", dest, err)
	}
	req.To = pos
	return req, nil
}

// ParseAttack parses [sessionId, attackerId, targetId, weaponId]. Squadrons attack
// without a weapon id.
func (p *Parser) ParseAttack(data []string) (AttackRequest, error) {
	data, err := clean(data, 3)
	if err != nil {
		return AttackRequest{}, err
	}
	return AttackRequest{
		SessionID:  data[0],
		AttackerID: data[1],
		TargetID:   data[2],
		WeaponID:   arg(data, 3),
	}, nil
}

// ParseWeather parses [sessionId, weather].
func (p *Parser) ParseWeather(data []string) (WeatherRequest, error) {
	data, err := clean(data, 2)
	if err != nil {
		return WeatherRequest{}, err
	}
	return WeatherRequest{SessionID: data[0], Weather: data[1]}, nil
}

// ParseAbort parses [sessionId, reason]. The reason is optional.
func (p *Parser) ParseAbort(data []string) (AbortRequest, error) {
	data, err := clean(data, 1)
	if err != nil {
		return AbortRequest{}, err
	}
	return AbortRequest{SessionID: data[0], Reason: arg(data, 1)}, nil
}

// decodeJSON unmarshals a JSON argument, logging the raw payload on failure.
func (p *Parser) decodeJSON(what, raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		p.logger.Error("Error unmarshalling "+what, "data", raw, "error", err)
		return fmt.Errorf("error unmarshalling %s data: %w", what, err)
	}
	return nil
}
