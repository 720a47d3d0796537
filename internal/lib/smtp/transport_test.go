package smtp

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/rankshop/internal/config"
)

// plainServer отвечает как SMTP-сервер без STARTTLS.
func plainServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		_, _ = conn.Write([]byte("220 localhost ESMTP\r\n"))
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch {
			case len(line) >= 4 && (line[:4] == "EHLO" || line[:4] == "HELO"):
				_, _ = conn.Write([]byte("250-localhost\r\n250 AUTH PLAIN\r\n"))
			case len(line) >= 4 && line[:4] == "QUIT":
				_, _ = conn.Write([]byte("221 bye\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("250 ok\r\n"))
			}
		}
	}()
	return ln.Addr().String()
}

func TestTransport_RequiresStartTLS(t *testing.T) {
	host, port, err := net.SplitHostPort(plainServer(t))
	require.NoError(t, err)

	tr := NewTransport(config.SMTP{Host: host, Port: port, User: "shop@example.com"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err = tr.Connect()
	require.ErrorIs(t, err, ErrNoStartTLS)
}

func TestTransport_DialError(t *testing.T) {
	tr := NewTransport(config.SMTP{Host: "127.0.0.1", Port: "1"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := tr.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp.Connect")
}

func TestTransport_GetSMTPUser(t *testing.T) {
	tr := NewTransport(config.SMTP{User: "shop@example.com"}, nil)
	assert.Equal(t, "shop@example.com", tr.GetSMTPUser())
}
