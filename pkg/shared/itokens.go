package shared

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// TokenSource issues cancellation tokens that live inside the worker.
// An analysis started with a token observes Cancel at its next checkpoint.
type TokenSource interface {
	NewToken() (string, error)
	Cancel(id string) error
	Release(id string) error
}

type TokensRPCClient struct{ client *rpc.Client }

func (g *TokensRPCClient) NewToken() (string, error) {
	var resp string
	err := g.client.Call("Plugin.NewToken", new(interface{}), &resp)
	if err != nil {
		return "", err
	}
	return resp, nil
}

func (g *TokensRPCClient) Cancel(id string) error {
	var resp bool
	return g.client.Call("Plugin.Cancel", id, &resp)
}

func (g *TokensRPCClient) Release(id string) error {
	var resp bool
	return g.client.Call("Plugin.Release", id, &resp)
}

type TokensRPCServer struct {
	Impl TokenSource
}

func (s *TokensRPCServer) NewToken(args interface{}, resp *string) error {
	var err error
	*resp, err = s.Impl.NewToken()
	return err
}

func (s *TokensRPCServer) Cancel(id string, resp *bool) error {
	if err := s.Impl.Cancel(id); err != nil {
		return err
	}
	*resp = true
	return nil
}

func (s *TokensRPCServer) Release(id string, resp *bool) error {
	if err := s.Impl.Release(id); err != nil {
		return err
	}
	*resp = true
	return nil
}

type TokensPlugin struct {
	Impl TokenSource
}

func (p *TokensPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &TokensRPCServer{Impl: p.Impl}, nil
}

func (TokensPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &TokensRPCClient{client: c}, nil
}
