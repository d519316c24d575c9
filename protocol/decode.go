package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brensch/tankbot/game"
)

// Decode turns one frame into a Message. Any malformed part of the frame
// fails the whole decode with a *DecodeError; there are no partial results.
func Decode(frame string) (Message, error) {
	msg, err := decode(StripTerminator(frame))
	if err != nil {
		return nil, &DecodeError{Frame: frame, Err: err}
	}
	return msg, nil
}

func decode(text string) (Message, error) {
	if text == "" {
		return nil, ErrEmptyFrame
	}
	if !strings.ContainsRune(text, outerDelim) {
		return decodeShortCode(text)
	}

	fields := SplitOuter(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("missing tag: %w", ErrArity)
	}
	tag, fields := fields[0], fields[1:]

	switch tag {
	case "S":
		return decodeJoin(fields)
	case "I":
		return decodeInitiation(fields)
	case "G":
		return decodeBroadcast(fields)
	case "L":
		return decodeLifepack(fields)
	case "C":
		return decodeCoinpack(fields)
	}
	return nil, fmt.Errorf("tag %q: %w", tag, ErrUnknownTag)
}

// decodeShortCode handles failure replies. Only the first segment names
// the reason; OBSTACLE;25 carries a numeric suffix that is dropped.
func decodeShortCode(text string) (Message, error) {
	segments := SplitMiddle(text)
	if len(segments) == 0 {
		return nil, ErrEmptyFrame
	}
	id := ShortCodeToIdentifier(segments[0])
	if reason, ok := LookupCommandFailure(id); ok {
		return CommandFailed{Reason: reason}, nil
	}
	if reason, ok := LookupJoinFailure(id); ok {
		return JoinFailed{Reason: reason}, nil
	}
	return nil, fmt.Errorf("%q: %w", segments[0], ErrUnknownShortCode)
}

// decodeJoin accepts both shapes the server has been seen to send:
// S:P1;0,0;0 (one semicolon record per player) and S:P1:0,0:0 (flat).
func decodeJoin(fields []string) (Message, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("join: %w", ErrArity)
	}

	nested := false
	for _, f := range fields {
		if strings.ContainsRune(f, middleDelim) {
			nested = true
			break
		}
	}
	if !nested {
		p, err := parsePlacement(fields)
		if err != nil {
			return nil, err
		}
		return Join{Placements: []Placement{p}}, nil
	}

	placements := make([]Placement, 0, len(fields))
	for _, f := range fields {
		p, err := parsePlacement(SplitMiddle(f))
		if err != nil {
			return nil, err
		}
		placements = append(placements, p)
	}
	return Join{Placements: placements}, nil
}

func parsePlacement(parts []string) (Placement, error) {
	if len(parts) != 3 {
		return Placement{}, fmt.Errorf("join record has %d parts, want 3: %w", len(parts), ErrArity)
	}
	player, err := parsePlayer(parts[0])
	if err != nil {
		return Placement{}, err
	}
	loc, err := parsePoint(parts[1])
	if err != nil {
		return Placement{}, err
	}
	facing, err := parseDirection(parts[2])
	if err != nil {
		return Placement{}, err
	}
	return Placement{PlayerNumber: player, Location: loc, Facing: facing}, nil
}

func decodeInitiation(fields []string) (Message, error) {
	if len(fields) != 4 {
		return nil, fmt.Errorf("initiation has %d fields, want 4: %w", len(fields), ErrArity)
	}
	player, err := parsePlayer(fields[0])
	if err != nil {
		return nil, err
	}
	bricks, err := parsePoints(fields[1])
	if err != nil {
		return nil, fmt.Errorf("bricks: %w", err)
	}
	stones, err := parsePoints(fields[2])
	if err != nil {
		return nil, fmt.Errorf("stones: %w", err)
	}
	waters, err := parsePoints(fields[3])
	if err != nil {
		return nil, fmt.Errorf("waters: %w", err)
	}
	return Initiation{PlayerNumber: player, Bricks: bricks, Stones: stones, Waters: waters}, nil
}

// decodeBroadcast reads one tank record per field, followed by the brick
// damage list. If the last field is itself a tank record no bricks were
// reported.
func decodeBroadcast(fields []string) (Message, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("broadcast: %w", ErrArity)
	}

	records, damageField := fields[:len(fields)-1], fields[len(fields)-1]
	if isTankRecord(damageField) {
		records, damageField = fields, ""
	}

	msg := Broadcast{Tanks: make([]TankDetails, 0, len(records))}
	for _, r := range records {
		d, err := parseTankDetails(SplitMiddle(r))
		if err != nil {
			return nil, err
		}
		msg.Tanks = append(msg.Tanks, d)
	}

	for _, entry := range SplitMiddle(damageField) {
		d, err := parseBrickDamage(entry)
		if err != nil {
			return nil, err
		}
		msg.Damage = append(msg.Damage, d)
	}
	return msg, nil
}

func isTankRecord(field string) bool {
	return strings.HasPrefix(field, "P")
}

func parseTankDetails(parts []string) (TankDetails, error) {
	if len(parts) != 7 {
		return TankDetails{}, fmt.Errorf("tank record has %d parts, want 7: %w", len(parts), ErrArity)
	}
	var (
		d   TankDetails
		err error
	)
	if d.PlayerNumber, err = parsePlayer(parts[0]); err != nil {
		return TankDetails{}, err
	}
	if d.Location, err = parsePoint(parts[1]); err != nil {
		return TankDetails{}, err
	}
	if d.Facing, err = parseDirection(parts[2]); err != nil {
		return TankDetails{}, err
	}
	if d.Shot, err = parseFlag(parts[3]); err != nil {
		return TankDetails{}, err
	}
	if d.Health, err = parseInt(parts[4]); err != nil {
		return TankDetails{}, err
	}
	if d.Coins, err = parseInt(parts[5]); err != nil {
		return TankDetails{}, err
	}
	if d.Points, err = parseInt(parts[6]); err != nil {
		return TankDetails{}, err
	}
	return d, nil
}

func parseBrickDamage(entry string) (BrickDamage, error) {
	nums, err := parseInts(entry, 3)
	if err != nil {
		return BrickDamage{}, err
	}
	if nums[2] < 0 || nums[2] > game.MaxBrickHealth {
		return BrickDamage{}, fmt.Errorf("damage level %d: %w", nums[2], ErrRange)
	}
	return BrickDamage{Location: game.Pt(nums[0], nums[1]), DamageLevel: nums[2]}, nil
}

func decodeLifepack(fields []string) (Message, error) {
	if len(fields) != 2 {
		return nil, fmt.Errorf("lifepack has %d fields, want 2: %w", len(fields), ErrArity)
	}
	loc, err := parsePoint(fields[0])
	if err != nil {
		return nil, err
	}
	ticks, err := parseInt(fields[1])
	if err != nil {
		return nil, err
	}
	return LifepackAppeared{Location: loc, Ticks: ticks}, nil
}

func decodeCoinpack(fields []string) (Message, error) {
	if len(fields) != 3 {
		return nil, fmt.Errorf("coinpack has %d fields, want 3: %w", len(fields), ErrArity)
	}
	loc, err := parsePoint(fields[0])
	if err != nil {
		return nil, err
	}
	ticks, err := parseInt(fields[1])
	if err != nil {
		return nil, err
	}
	value, err := parseInt(fields[2])
	if err != nil {
		return nil, err
	}
	return CoinpackAppeared{Location: loc, Ticks: ticks, Value: value}, nil
}

func parseInt(tok string) (int, error) {
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", tok, ErrNumber)
	}
	return n, nil
}

// parseInts reads exactly want comma separated integers.
func parseInts(tok string, want int) ([]int, error) {
	parts := SplitInner(tok)
	if len(parts) != want {
		return nil, fmt.Errorf("%q has %d values, want %d: %w", tok, len(parts), want, ErrArity)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := parseInt(p)
		if err != nil {
			return nil, err
		}
		nums[i] = n
	}
	return nums, nil
}

func parsePoint(tok string) (game.Point, error) {
	nums, err := parseInts(tok, 2)
	if err != nil {
		return game.Point{}, err
	}
	return game.Pt(nums[0], nums[1]), nil
}

func parsePoints(field string) ([]game.Point, error) {
	entries := SplitMiddle(field)
	points := make([]game.Point, 0, len(entries))
	for _, e := range entries {
		p, err := parsePoint(e)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// parsePlayer reads a player token such as P3.
func parsePlayer(tok string) (int, error) {
	rest, ok := strings.CutPrefix(tok, "P")
	if !ok {
		return 0, fmt.Errorf("player token %q: %w", tok, ErrNumber)
	}
	n, err := parseInt(rest)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("player %d: %w", n, ErrRange)
	}
	return n, nil
}

func parseDirection(tok string) (game.Direction, error) {
	n, err := parseInt(tok)
	if err != nil {
		return 0, err
	}
	d := game.Direction(n)
	if !d.Valid() {
		return 0, fmt.Errorf("direction %d: %w", n, ErrRange)
	}
	return d, nil
}

func parseFlag(tok string) (bool, error) {
	switch tok {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("flag %q: %w", tok, ErrRange)
}
