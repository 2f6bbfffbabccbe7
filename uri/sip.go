package uri

import (
	"slices"
	"strconv"
	"strings"

	"braces.dev/errtrace"

	"github.com/sipward/sipward/internal/errorutil"
	"github.com/sipward/sipward/internal/util"
)

// SIP represents a SIP or SIPS URI.
//
// The zero value renders as "sip:". A URI produced by [Parse] keeps the
// original input text, available via [SIP.Raw], so that a parsed URI can be
// carried around as an opaque handle without losing the source form.
type SIP struct {
	User     string // username, may be empty
	Password string // password, only meaningful with a user
	Host     string // host name or IP literal, required
	Port     int    // 0 when absent
	Params   Values // uri-parameters
	Headers  Values // uri-headers
	Secured  bool   // sips scheme

	raw string
}

// Scheme returns the URI scheme.
func (u *SIP) Scheme() string {
	if u == nil {
		return ""
	}
	return u.scheme()
}

func (u *SIP) scheme() string {
	if u.Secured {
		return "sips"
	}
	return "sip"
}

// Raw returns the original text the URI was parsed from,
// or the empty string for a constructed URI.
func (u *SIP) Raw() string {
	if u == nil {
		return ""
	}
	return u.raw
}

// IsValid reports whether the URI has the mandatory parts.
func (u *SIP) IsValid() bool {
	return u != nil && u.Host != "" && u.Port >= 0 && u.Port <= 65535
}

// Clone returns a deep copy of the URI.
func (u *SIP) Clone() *SIP {
	if u == nil {
		return nil
	}
	u2 := *u
	u2.Params = u.Params.Clone()
	u2.Headers = u.Headers.Clone()
	return &u2
}

// Equal checks whether the URI is equal to another SIP URI.
// Scheme and host compare case-insensitively, userinfo case-sensitively.
func (u *SIP) Equal(val any) bool {
	var other *SIP
	switch v := val.(type) {
	case *SIP:
		other = v
	case SIP:
		other = &v
	default:
		return false
	}
	if u == nil || other == nil {
		return u == other
	}
	return u.Secured == other.Secured &&
		u.User == other.User &&
		u.Password == other.Password &&
		util.EqFold(u.Host, other.Host) &&
		u.Port == other.Port
}

// String renders the URI in canonical form.
// Parameters and headers are rendered in sorted key order so the output
// is stable for logging and comparison.
func (u *SIP) String() string {
	if u == nil {
		return ""
	}

	sb := util.GetStringBuilder()
	defer util.FreeStringBuilder(sb)

	sb.WriteString(u.scheme())
	sb.WriteByte(':')
	if u.User != "" {
		sb.WriteString(u.User)
		if u.Password != "" {
			sb.WriteByte(':')
			sb.WriteString(u.Password)
		}
		sb.WriteByte('@')
	}
	sb.WriteString(u.Host)
	if u.Port > 0 {
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(u.Port))
	}
	writeValues(sb, u.Params, ';', ';', '=')
	writeValues(sb, u.Headers, '?', '&', '=')
	return sb.String()
}

func writeValues(sb *strings.Builder, vs Values, lead, sep, eq byte) {
	if len(vs) == 0 {
		return
	}

	keys := make([]string, 0, len(vs))
	for k := range vs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for i, k := range keys {
		if i == 0 {
			sb.WriteByte(lead)
		} else {
			sb.WriteByte(sep)
		}
		sb.WriteString(k)
		if v := vs[k]; v != "" {
			sb.WriteByte(eq)
			sb.WriteString(v)
		}
	}
}

// Parse parses a SIP or SIPS URI from the given input.
// The scheme must be present and must be "sip" or "sips" (case-insensitive).
func Parse[T ~string | ~[]byte](src T) (*SIP, error) {
	s := string(src)
	if s == "" {
		return nil, errtrace.Wrap(ErrEmptyInput)
	}

	scheme, rest, ok := strings.Cut(s, ":")
	if !ok {
		return nil, errtrace.Wrap(errorutil.NewWrapperError(ErrMalformedURI, s))
	}

	u := &SIP{raw: s}
	switch {
	case util.EqFold(scheme, "sip"):
	case util.EqFold(scheme, "sips"):
		u.Secured = true
	default:
		return nil, errtrace.Wrap(errorutil.NewWrapperError(ErrUnknownScheme, scheme))
	}

	if err := parseAfterScheme(u, rest); err != nil {
		return nil, errtrace.Wrap(err)
	}
	return u, nil
}

// ParseWithDefaultScheme parses a URI, prepending the given scheme
// ("sip" or "sips") when the input carries none.
func ParseWithDefaultScheme[T ~string | ~[]byte](scheme string, src T) (*SIP, error) {
	s := string(src)
	if s == "" {
		return nil, errtrace.Wrap(ErrEmptyInput)
	}

	if !hasSIPScheme(s) {
		u, err := Parse(scheme + ":" + s)
		if err != nil {
			return nil, errtrace.Wrap(err)
		}
		// the handle keeps the text as given by the caller
		u.raw = s
		return u, nil
	}
	return errtrace.Wrap2(Parse(s))
}

func hasSIPScheme(s string) bool {
	if rest, ok := cutPrefixFold(s, "sips:"); ok {
		return rest != ""
	}
	if rest, ok := cutPrefixFold(s, "sip:"); ok {
		return rest != ""
	}
	return false
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !util.EqFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

func parseAfterScheme(u *SIP, s string) error {
	if s == "" {
		return errtrace.Wrap(ErrMissingHost)
	}

	// headers
	if q := strings.IndexByte(s, '?'); q >= 0 {
		u.Headers = parseValues(s[q+1:], '&')
		s = s[:q]
	}

	// uri-parameters
	if sc := strings.IndexByte(s, ';'); sc >= 0 {
		u.Params = parseValues(s[sc+1:], ';')
		s = s[:sc]
	}

	// userinfo
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		userinfo := s[:at]
		s = s[at+1:]
		if userinfo == "" {
			return errtrace.Wrap(ErrInvalidUserInfo)
		}
		u.User, u.Password, _ = strings.Cut(userinfo, ":")
		if u.User == "" {
			return errtrace.Wrap(ErrInvalidUserInfo)
		}
	}

	host, port, err := splitHostPort(s)
	if err != nil {
		return errtrace.Wrap(err)
	}
	u.Host = host
	u.Port = port
	return nil
}

func parseValues(s string, sep byte) Values {
	vs := make(Values)
	for part := range strings.SplitSeq(s, string(sep)) {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		vs[util.LCase(k)] = v
	}
	return vs
}

func splitHostPort(s string) (string, int, error) {
	if s == "" {
		return "", 0, errtrace.Wrap(ErrMissingHost)
	}

	// IPv6 reference
	if s[0] == '[' {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return "", 0, errtrace.Wrap(errorutil.NewWrapperError(ErrMalformedURI, s))
		}
		host := s[:end+1]
		rest := s[end+1:]
		if rest == "" {
			return host, 0, nil
		}
		if rest[0] != ':' {
			return "", 0, errtrace.Wrap(errorutil.NewWrapperError(ErrMalformedURI, s))
		}
		port, err := parsePort(rest[1:])
		if err != nil {
			return "", 0, errtrace.Wrap(err)
		}
		return host, port, nil
	}

	host, portStr, ok := strings.Cut(s, ":")
	if host == "" {
		return "", 0, errtrace.Wrap(ErrMissingHost)
	}
	if !ok {
		return host, 0, nil
	}
	port, err := parsePort(portStr)
	if err != nil {
		return "", 0, errtrace.Wrap(err)
	}
	return host, port, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 0 || port > 65535 {
		return 0, errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidPort, s))
	}
	return port, nil
}

