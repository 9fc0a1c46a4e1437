package w3m_e2e

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
)

const (
	DefaultAnvilImage = "ghcr.io/foundry-rs/foundry:latest"

	anvilPort    = nat.Port("8545/tcp")
	readyTimeout = 30 * time.Second
)

// Devnet is an anvil node running in a docker container.
type Devnet struct {
	log    log.Logger
	docker *client.Client
	id     string
	URL    string
}

// StartDevnet pulls image if needed, starts anvil on chain 31337 and waits
// until it answers RPC requests on a random local port.
func StartDevnet(ctx context.Context, l log.Logger, image string) (*Devnet, error) {
	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if _, err := docker.Ping(ctx); err != nil {
		docker.Close()
		return nil, fmt.Errorf("docker is not available: %w", err)
	}
	if err := pullImage(ctx, l, docker, image); err != nil {
		docker.Close()
		return nil, err
	}

	resp, err := docker.ContainerCreate(ctx,
		&container.Config{
			Image:        image,
			Entrypoint:   []string{"anvil"},
			Cmd:          []string{"--host", "0.0.0.0", "--chain-id", "31337"},
			ExposedPorts: nat.PortSet{anvilPort: struct{}{}},
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{anvilPort: []nat.PortBinding{{HostIP: "127.0.0.1"}}},
		},
		nil, nil, "")
	if err != nil {
		docker.Close()
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	d := &Devnet{log: l.New("container", resp.ID[:12]), docker: docker, id: resp.ID}
	if err := d.start(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func pullImage(ctx context.Context, l log.Logger, docker *client.Client, image string) error {
	_, _, err := docker.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to inspect image %s: %w", image, err)
	}
	l.Info("Pulling image", "image", image)
	rc, err := docker.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", image, err)
	}
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	return err
}

func (d *Devnet) start(ctx context.Context) error {
	if err := d.docker.ContainerStart(ctx, d.id, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	info, err := d.docker.ContainerInspect(ctx, d.id)
	if err != nil {
		return fmt.Errorf("failed to inspect container: %w", err)
	}
	bindings := info.NetworkSettings.Ports[anvilPort]
	if len(bindings) == 0 {
		return errors.New("anvil port is not published")
	}
	d.URL = fmt.Sprintf("http://127.0.0.1:%s", bindings[0].HostPort)
	d.log.Info("Started devnet", "url", d.URL)
	return d.waitReady(ctx)
}

func (d *Devnet) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		c, err := ethclient.DialContext(ctx, d.URL)
		if err == nil {
			_, err = c.ChainID(ctx)
			c.Close()
			if err == nil {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("devnet not ready: %w", err)
		case <-ticker.C:
		}
	}
}

// Close removes the container.
func (d *Devnet) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.docker.ContainerRemove(ctx, d.id, types.ContainerRemoveOptions{Force: true}); err != nil {
		d.log.Warn("Failed to remove devnet container", "err", err)
	}
	d.docker.Close()
}
