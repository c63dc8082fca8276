package homework

import (
	"fmt"
	"strconv"
)

const (
	KeyName   = "homework_name"
	KeyStatus = "status"

	// keyNameShort is accepted when homework_name is absent.
	keyNameShort = "name"
)

// Item is the typed view of one validated work item.
type Item struct {
	Name   string
	Status string
}

// ParseItem extracts name and status from a decoded work item.
func ParseItem(raw any) (Item, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Item{}, &WrongTypeError{Got: typeName(raw), Want: "object"}
	}
	name, ok := m[KeyName]
	if !ok {
		if name, ok = m[keyNameShort]; !ok {
			return Item{}, &WrongKeyError{Key: KeyName, Value: m}
		}
	}
	status, ok := m[KeyStatus]
	if !ok {
		return Item{}, &WrongKeyError{Key: KeyStatus, Value: m}
	}
	return Item{Name: scalarString(name), Status: scalarString(status)}, nil
}

// scalarString renders a decoded JSON scalar. Numbers keep their plain
// decimal form, so an id like 12345678 does not turn into 1.2345678e+07.
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Format renders the notification text for one work item.
func Format(raw any) (string, error) {
	it, err := ParseItem(raw)
	if err != nil {
		return "", err
	}
	return it.Message()
}

// Message renders the notification text for it.
func (it Item) Message() (string, error) {
	verdict, ok := Verdict(it.Status)
	if !ok {
		return "", &UnknownStatusError{Status: it.Status}
	}
	return fmt.Sprintf("Changed review status for \"%s\". %s", it.Name, verdict), nil
}
