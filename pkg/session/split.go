package session

import (
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/archdiagram/pkg/errors"
)

// Split is the editor/diagram pane split as percentages of the window width.
// It is encoded as a JSON array, e.g. [25,75].
type Split [2]float64

// DefaultSplit is used when no valid preference exists.
var DefaultSplit = Split{25, 75}

// splitTolerance allows for rounding in the client's pane sizes.
const splitTolerance = 1.0

// Editor returns the editor pane's share.
func (s Split) Editor() float64 { return s[0] }

// Diagram returns the diagram pane's share.
func (s Split) Diagram() float64 { return s[1] }

// Validate checks that both panes are within [0, 100] and together fill the
// window.
func (s Split) Validate() error {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
			return errors.New(errors.ErrCodeInvalidPreference, "pane size %v out of range", v)
		}
	}
	if sum := s[0] + s[1]; math.Abs(sum-100) > splitTolerance {
		return errors.New(errors.ErrCodeInvalidPreference, "pane sizes add up to %v, want 100", sum)
	}
	return nil
}

// ParseSplit decodes a JSON array of two numbers and validates it.
func ParseSplit(data []byte) (Split, error) {
	var raw []float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return Split{}, errors.Wrap(errors.ErrCodeInvalidPreference, err, "split is not a number array")
	}
	if len(raw) != 2 {
		return Split{}, errors.New(errors.ErrCodeInvalidPreference, "split has %d values, want 2", len(raw))
	}
	s := Split{raw[0], raw[1]}
	if err := s.Validate(); err != nil {
		return Split{}, err
	}
	return s, nil
}

// String returns the JSON form.
func (s Split) String() string {
	data, _ := json.Marshal([2]float64(s))
	return string(data)
}

// Cookie settings for the split preference.
const (
	CookieName   = "archdiagram_editor_layout"
	CookieMaxAge = 365 * 24 * time.Hour
)

// EncodeCookie returns the cookie value for s: its JSON form, URL-escaped.
func EncodeCookie(s Split) string {
	return url.QueryEscape(s.String())
}

// DecodeCookie reverses [EncodeCookie].
func DecodeCookie(value string) (Split, error) {
	raw, err := url.QueryUnescape(value)
	if err != nil {
		return Split{}, errors.Wrap(errors.ErrCodeInvalidPreference, err, "bad cookie encoding")
	}
	return ParseSplit([]byte(raw))
}

// ReadCookie returns the split stored in r's cookie, or [DefaultSplit] when
// the cookie is missing or invalid.
func ReadCookie(r *http.Request) Split {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return DefaultSplit
	}
	s, err := DecodeCookie(c.Value)
	if err != nil {
		return DefaultSplit
	}
	return s
}

// WriteCookie sets the split cookie on w.
func WriteCookie(w http.ResponseWriter, s Split) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    EncodeCookie(s),
		Path:     "/",
		MaxAge:   int(CookieMaxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}
