package assertion

// Extract converts an assertion's attribute statements into Attributes.
//
// Each value is coerced to a string by its kind: KindString values are used
// verbatim, KindText values contribute their text content, and
// KindUnrecognized values are dropped without affecting the rest of the
// statement. Statements sharing a name are merged with values in encounter
// order.
//
// Extract is a total function: it never fails, and a nil assertion yields
// an empty Attributes.
func Extract(a *Assertion) Attributes {
	if a == nil {
		return Attributes{}
	}

	attrs := make(Attributes, len(a.Statements))
	for _, stmt := range a.Statements {
		for _, v := range stmt.Values {
			switch v.Kind {
			case KindString, KindText:
				attrs[stmt.Name] = append(attrs[stmt.Name], v.Data)
			case KindUnrecognized:
				// dropped
			}
		}
	}
	return attrs
}
