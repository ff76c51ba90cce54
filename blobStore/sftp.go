package blobstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"fileflow/logger"
	"fileflow/utils"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPConfig configures the SFTP backend. PrivateKey may be base64 or raw PEM.
type SFTPConfig struct {
	Host       string
	Port       string
	User       string
	Password   string
	PrivateKey string
	Root       string
}

// SFTPStore keeps blobs on a remote host. Each operation dials its own
// session so a dropped connection never poisons later calls.
type SFTPStore struct {
	addr   string
	config *ssh.ClientConfig
	root   string
	now    func() time.Time
}

func NewSFTPStore(cfg SFTPConfig) (*SFTPStore, error) {
	if cfg.Host == "" || cfg.User == "" {
		return nil, errors.New("blobstore: sftp host and user are required")
	}
	port := cfg.Port
	if port == "" {
		port = "22"
	}

	var auths []ssh.AuthMethod
	if cfg.PrivateKey != "" {
		// try to decode as base64, fall back to raw
		keyBytes, err := base64.StdEncoding.DecodeString(cfg.PrivateKey)
		if err != nil {
			keyBytes = []byte(cfg.PrivateKey)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	} else if cfg.Password != "" {
		auths = append(auths, ssh.Password(cfg.Password))
	} else {
		return nil, fmt.Errorf("no auth method provided; set SFTP_PASSWORD or SFTP_PRIVATE_KEY")
	}

	return &SFTPStore{
		addr: net.JoinHostPort(cfg.Host, port),
		config: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auths,
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         10 * time.Second,
		},
		root: strings.TrimRight(cfg.Root, "/"),
		now:  time.Now,
	}, nil
}

func (s *SFTPStore) Name() string { return "sftp" }

func (s *SFTPStore) remotePath(key string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if s.root == "" {
		return cleanKey, nil
	}
	return path.Join(s.root, cleanKey), nil
}

// withClient dials, runs fn and tears the session down.
func (s *SFTPStore) withClient(ctx context.Context, fn func(*sftp.Client) error) error {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return storageError(err, "dial tcp %s", s.addr)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, s.addr, s.config)
	if err != nil {
		conn.Close()
		return storageError(err, "ssh handshake with %s", s.addr)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)
	defer sshClient.Close()

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return storageError(err, "create sftp client")
	}
	defer sftpClient.Close()

	// Abort the session if the caller gives up.
	stop := context.AfterFunc(ctx, func() { sshClient.Close() })
	defer stop()

	return fn(sftpClient)
}

// Put uploads to a hidden temporary name and renames it into place.
func (s *SFTPStore) Put(ctx context.Context, data []byte, suggestedName string) (string, error) {
	key, err := newKey(suggestedName, s.now())
	if err != nil {
		return "", err
	}
	remotePath, err := s.remotePath(key)
	if err != nil {
		return "", err
	}
	suffix, err := utils.GenerateRandomHex(6)
	if err != nil {
		return "", storageError(err, "generate temp name")
	}
	dir := path.Dir(remotePath)
	tmpPath := path.Join(dir, ".upload-"+suffix)

	err = s.withClient(ctx, func(client *sftp.Client) error {
		if err := mkdirAllSFTP(client, dir); err != nil {
			return storageError(err, "ensure remote dir %s", dir)
		}
		f, err := client.Create(tmpPath)
		if err != nil {
			return storageError(err, "create remote file %s", tmpPath)
		}
		if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
			f.Close()
			client.Remove(tmpPath)
			return storageError(err, "copy to remote file %s", tmpPath)
		}
		if err := f.Close(); err != nil {
			client.Remove(tmpPath)
			return storageError(err, "close remote file %s", tmpPath)
		}
		if err := client.PosixRename(tmpPath, remotePath); err != nil {
			if err := client.Rename(tmpPath, remotePath); err != nil {
				client.Remove(tmpPath)
				return storageError(err, "commit remote file %s", remotePath)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	logger.Debugf("Uploaded '%s' to %s", remotePath, s.addr)
	return key, nil
}

func (s *SFTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	remotePath, err := s.remotePath(key)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.withClient(ctx, func(client *sftp.Client) error {
		f, err := client.Open(remotePath)
		if err != nil {
			if os.IsNotExist(err) {
				return notFound(key)
			}
			return storageError(err, "open remote file %s", remotePath)
		}
		defer f.Close()
		data, err = io.ReadAll(f)
		if err != nil {
			return storageError(err, "read remote file %s", remotePath)
		}
		return nil
	})
	return data, err
}

func (s *SFTPStore) Delete(ctx context.Context, key string) error {
	remotePath, err := s.remotePath(key)
	if err != nil {
		return nil
	}
	return s.withClient(ctx, func(client *sftp.Client) error {
		if err := client.Remove(remotePath); err != nil && !os.IsNotExist(err) {
			return storageError(err, "remove remote file %s", remotePath)
		}
		return nil
	})
}

func (s *SFTPStore) Size(ctx context.Context, key string) (int64, error) {
	remotePath, err := s.remotePath(key)
	if err != nil {
		return 0, err
	}
	var size int64
	err = s.withClient(ctx, func(client *sftp.Client) error {
		info, err := client.Stat(remotePath)
		if err != nil {
			if os.IsNotExist(err) {
				return notFound(key)
			}
			return storageError(err, "stat remote file %s", remotePath)
		}
		size = info.Size()
		return nil
	})
	return size, err
}

// mkdirAllSFTP mimics os.MkdirAll for an SFTP server by creating each segment of the path.
func mkdirAllSFTP(client *sftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}

	parts := strings.Split(dir, "/")
	cur := ""
	if strings.HasPrefix(dir, "/") {
		cur = "/"
	}

	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = path.Join(cur, p)
		if _, err := client.Stat(cur); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("stat %s: %w", cur, err)
			}
			if err := client.Mkdir(cur); err != nil {
				return fmt.Errorf("mkdir %s: %w", cur, err)
			}
		}
	}
	return nil
}
