package delivery

import (
	"context"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"ficsync/internal/config"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const dialTimeout = 30 * time.Second

type sftpFS struct {
	conn   *ssh.Client
	client *sftp.Client
}

func (s sftpFS) Lstat(p string) (os.FileInfo, error) {
	return s.client.Lstat(p)
}

func (s sftpFS) Mkdir(p string) error {
	return s.client.Mkdir(p)
}

func (s sftpFS) Create(p string) (io.WriteCloser, error) {
	f, err := s.client.Create(p)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s sftpFS) Close() error {
	err := s.client.Close()
	connErr := s.conn.Close()
	if err != nil {
		return err
	}
	return connErr
}

func hostKeyCallback(device config.Device) (ssh.HostKeyCallback, error) {
	if device.KnownHosts == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	return knownhosts.New(device.KnownHosts)
}

// DialSFTP opens an sftp session to the device with password authentication.
func DialSFTP(ctx context.Context, device config.Device) (RemoteFS, error) {
	addr := net.JoinHostPort(device.Address, strconv.Itoa(device.Port))
	connectError := func(err error) error {
		return &TransferError{Op: "connect", Path: addr, Err: err}
	}

	hostKey, err := hostKeyCallback(device)
	if err != nil {
		return nil, connectError(err)
	}
	sshConfig := &ssh.ClientConfig{
		User: device.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(device.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = device.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKey,
		Timeout:         dialTimeout,
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, connectError(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		return nil, connectError(err)
	}
	// the handshake is done, transfers are bounded by the context instead
	conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, connectError(err)
	}
	return sftpFS{conn: client, client: sftpClient}, nil
}
