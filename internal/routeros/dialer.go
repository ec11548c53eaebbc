package routeros

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	ros "github.com/go-routeros/routeros/v3"
)

// Client is one opaque RPC channel to a device. Execute takes the command
// path and pre-formatted key=value arguments and returns the reply rows.
type Client interface {
	Execute(command string, args ...string) ([]map[string]string, error)
	Close()
}

type Dialer interface {
	Dial(ctx context.Context, cred Credential) (Client, error)
}

// APIDialer dials the RouterOS binary API.
type APIDialer struct {
	Timeout time.Duration
	UseTLS  bool
}

func (d *APIDialer) Dial(ctx context.Context, cred Credential) (Client, error) {
	timeout := d.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout || timeout <= 0 {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	var (
		client *ros.Client
		err    error
	)
	if d.UseTLS {
		client, err = ros.DialTLSTimeout(cred.Address(), cred.User, cred.Password, &tls.Config{
			InsecureSkipVerify: true, // RouterOS ships self-signed certificates
		}, timeout)
	} else {
		client, err = ros.DialTimeout(cred.Address(), cred.User, cred.Password, timeout)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("RouterOS connection established", "host", cred.Address(), "user", cred.User)
	return &apiClient{client: client}, nil
}

type apiClient struct {
	client *ros.Client
}

func (c *apiClient) Execute(command string, args ...string) ([]map[string]string, error) {
	sentence := make([]string, 0, len(args)+1)
	sentence = append(sentence, command)
	for _, arg := range args {
		sentence = append(sentence, formatWord(arg))
	}

	reply, err := c.client.Run(sentence...)
	if err != nil {
		var devErr *ros.DeviceError
		if errors.As(err, &devErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrConnectionBroken, err)
	}

	rows := make([]map[string]string, 0, len(reply.Re))
	for _, re := range reply.Re {
		rows = append(rows, re.Map)
	}
	// add commands report the new item id as =ret= on the !done sentence
	if reply.Done != nil {
		if ret, ok := reply.Done.Map["ret"]; ok {
			rows = append(rows, map[string]string{"ret": ret})
		}
	}
	return rows, nil
}

func (c *apiClient) Close() {
	c.client.Close()
}

// formatWord turns "key=value" into an API attribute word. Query words (?)
// and words already carrying a prefix pass through.
func formatWord(arg string) string {
	if strings.HasPrefix(arg, "=") || strings.HasPrefix(arg, "?") {
		return arg
	}
	return "=" + arg
}
