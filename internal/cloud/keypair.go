package cloud

import (
	"context"
	"fmt"
)

type keyPair struct {
	Name string `json:"name"`
}

func (c *Client) FindKeyPair(ctx context.Context, name string) (bool, error) {
	result, err := c.api.Execute(ctx, "list", "sshkeypairs", "name="+name, "filter=name")
	if err != nil {
		return false, fmt.Errorf("failed to list ssh key pairs: %w", err)
	}

	var pairs []keyPair
	if err := result.Decode("sshkeypair", &pairs); err != nil {
		return false, err
	}

	for _, pair := range pairs {
		if pair.Name == name {
			return true, nil
		}
	}

	return false, nil
}

func (c *Client) RegisterKeyPair(ctx context.Context, name, publicKey string) error {
	if _, err := c.api.Execute(ctx, "register", "sshkeypair", "name="+name, "publickey="+publicKey); err != nil {
		return fmt.Errorf("failed to register ssh key pair: %w", err)
	}

	return nil
}

func (c *Client) DeleteKeyPair(ctx context.Context, name string) error {
	if _, err := c.api.Execute(ctx, "delete", "sshkeypair", "name="+name); err != nil {
		return fmt.Errorf("failed to delete ssh key pair: %w", err)
	}

	return nil
}
