package assertion

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	sberr "github.com/StricklySoft/saml-bridge/pkg/errors"
)

// registeredClaims are JWT claims that carry token plumbing rather than
// subject attributes. They are not converted into attribute statements.
var registeredClaims = map[string]struct{}{
	"iss": {},
	"sub": {},
	"aud": {},
	"exp": {},
	"nbf": {},
	"iat": {},
	"jti": {},
}

// FromClaims converts an already-validated JWT claim set into an Assertion.
//
// Signature and expiry verification remain the responsibility of the token
// validator that produced the claims; FromClaims performs no cryptographic
// checks. It exists so identity providers that deliver attribute bundles as
// JWTs (rather than SAML attribute statements) can feed the same resolution
// pipeline.
//
// Claim values map onto the assertion value kinds as follows:
//
//   - string             -> KindString, used verbatim
//   - bool, numbers      -> KindText, decimal/text form
//   - []any              -> one value per element, mapped by the same rules
//   - anything else      -> KindUnrecognized, dropped at extraction
//
// Statements are emitted in sorted claim-name order so the result is
// deterministic across calls. The "sub" claim becomes the assertion
// subject and is required.
func FromClaims(claims jwt.MapClaims) (*Assertion, error) {
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, sberr.New(sberr.CodeValidationRequired,
			"assertion: jwt claim set has no subject")
	}

	names := make([]string, 0, len(claims))
	for name := range claims {
		if _, reserved := registeredClaims[name]; reserved {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	a := &Assertion{Subject: subject}
	for _, name := range names {
		stmt := Statement{Name: name}
		switch v := claims[name].(type) {
		case []any:
			for _, elem := range v {
				stmt.Values = append(stmt.Values, claimValue(elem))
			}
		default:
			stmt.Values = append(stmt.Values, claimValue(v))
		}
		a.Statements = append(a.Statements, stmt)
	}
	return a, nil
}

// claimValue maps a single decoded JSON value onto the closed assertion
// value variant.
func claimValue(v any) Value {
	switch v := v.(type) {
	case string:
		return String(v)
	case bool:
		return Text(strconv.FormatBool(v))
	case float64:
		// encoding/json decodes all JSON numbers as float64.
		return Text(strconv.FormatFloat(v, 'f', -1, 64))
	case int64:
		return Text(strconv.FormatInt(v, 10))
	case fmt.Stringer:
		return Text(v.String())
	default:
		return Unrecognized()
	}
}
