package device

import (
	"context"
	"strings"
)

// StaticPermissions answers permission requests from a fixed grant set.
type StaticPermissions map[Permission]bool

// GrantAll grants camera, microphone and location.
func GrantAll() StaticPermissions {
	return StaticPermissions{PermissionCamera: true, PermissionMicrophone: true, PermissionLocation: true}
}

func (p StaticPermissions) Request(ctx context.Context, perm Permission) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p[perm], nil
}

// StaticLocator reports a configured position. Label is a comma separated
// "street, city, region, country" used as the reverse-geocoded address.
// Zero coordinates mean no fix.
type StaticLocator struct {
	Lat   float64
	Lon   float64
	Label string
}

func (l StaticLocator) CurrentPosition(ctx context.Context) (Position, error) {
	if l.Lat == 0 && l.Lon == 0 {
		return Position{}, ErrLocationUnavailable
	}
	return Position{Latitude: l.Lat, Longitude: l.Lon}, nil
}

func (l StaticLocator) ReverseGeocode(ctx context.Context, pos Position) (Address, error) {
	if strings.TrimSpace(l.Label) == "" {
		return Address{}, ErrLocationUnavailable
	}
	parts := strings.SplitN(l.Label, ",", 4)
	fields := make([]string, 4)
	for i, p := range parts {
		fields[i] = strings.TrimSpace(p)
	}
	return Address{Street: fields[0], City: fields[1], Region: fields[2], Country: fields[3]}, nil
}
