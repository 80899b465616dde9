package meeting

import (
	"net/url"

	"github.com/pkg/errors"
)

const ProtocolVersion = "2.0.0"

// Identifier authenticates the client. It is encoded into the
// connection URI once, so a new token needs a new client.
type Identifier struct {
	ProtocolVersion string
	Manufacturer    string
	Device          string
	App             string
	AppVersion      string
	Token           string
}

func NewIdentifier(manufacturer, device, app, appVersion string) Identifier {
	return Identifier{
		ProtocolVersion: ProtocolVersion,
		Manufacturer:    manufacturer,
		Device:          device,
		App:             app,
		AppVersion:      appVersion,
	}
}

func (i Identifier) WithToken(token string) Identifier {
	i.Token = token
	return i
}

func (i Identifier) buildURI(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", wrap(ErrConnection, errors.Wrap(err, "invalid url"))
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", wrap(ErrConnection, errors.Errorf("invalid url scheme %q", u.Scheme))
	}
	q := u.Query()
	q.Set("protocol-version", i.ProtocolVersion)
	q.Set("manufacturer", i.Manufacturer)
	q.Set("device", i.Device)
	q.Set("app", i.App)
	q.Set("app-version", i.AppVersion)
	q.Set("token", i.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
