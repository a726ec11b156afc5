package proxyhdr

import "strconv"

// Version selects the PROXY protocol encoding.
type Version int

const (
	// V1 is the human-readable text encoding.
	V1 Version = 1

	// V2 is the binary encoding.
	V2 Version = 2
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	}
	return "v" + strconv.Itoa(int(v))
}

// ParseVersion converts a version token ("1", "v1", "V1", "2", "v2" or "V2") to a Version.
func ParseVersion(s string) (Version, error) {
	switch s {
	case "1", "v1", "V1":
		return V1, nil
	case "2", "v2", "V2":
		return V2, nil
	}
	return 0, &InvalidVersionErr{Value: s}
}

// UnmarshalText implements encoding.TextUnmarshaler so versions can be read from config files.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	if err := ValidateVersion(v); err != nil {
		return nil, err
	}
	return []byte(v.String()), nil
}
