package homework

// KeyHomeworks is the response field holding the work item collection.
const KeyHomeworks = "homeworks"

// Validate checks the shape of a decoded API response and returns its
// homeworks collection unchanged. Items themselves are not inspected here;
// Format rejects malformed items one by one.
func Validate(raw any) ([]any, error) {
	resp, ok := raw.(map[string]any)
	if !ok {
		return nil, &WrongTypeError{Got: typeName(raw), Want: "object"}
	}
	// an explicit null counts as missing
	hw, ok := resp[KeyHomeworks]
	if !ok || hw == nil {
		return nil, &WrongKeyError{Key: KeyHomeworks, Value: resp}
	}
	items, ok := hw.([]any)
	if !ok {
		return nil, &WrongTypeError{Got: typeName(hw), Want: "array"}
	}
	return items, nil
}
