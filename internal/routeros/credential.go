package routeros

import (
	"fmt"
	"strings"
)

const DefaultPort = 8728

// Credential identifies one device account. Password is not part of the
// identity key but is needed to dial.
type Credential struct {
	Host     string `json:"host"`
	User     string `json:"user"`
	Password string `json:"-"`
	Port     int    `json:"port"`
}

func (c Credential) Validate() error {
	if strings.TrimSpace(c.Host) == "" || strings.TrimSpace(c.User) == "" {
		return ErrInvalidCredential
	}
	return nil
}

// Key is the registry identity: user@host:port.
func (c Credential) Key() string {
	return fmt.Sprintf("%s@%s:%d", c.User, c.Host, c.port())
}

// Identity is the preference owner string host:user.
func (c Credential) Identity() string {
	return c.Host + ":" + c.User
}

func (c Credential) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.port())
}

func (c Credential) port() int {
	if c.Port <= 0 {
		return DefaultPort
	}
	return c.Port
}
