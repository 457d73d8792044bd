package app

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"anon_messenger/internal/model"

	"github.com/gorilla/websocket"
)

func (c *App) register() (code string, ttlMinutes int, err error) {
	u := url.URL{
		Scheme: "http",
		Host:   c.host,
		Path:   "/api/identity/register",
	}

	resp, err := http.Post(u.String(), "application/json", nil)
	if err != nil {
		return "", 0, err
	}

	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("registration rejected: status %d", resp.StatusCode)
	}

	var rr model.RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return "", 0, err
	}
	return rr.AnonymousCode, rr.ExpiresInMinutes, nil
}

func (c *App) revoke() error {
	u := url.URL{
		Scheme: "http",
		Host:   c.host,
		Path:   "/api/identity/revoke",
	}

	req, err := http.NewRequest(http.MethodPost, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set(model.CodeHeader, c.code)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *App) dialRelay() (*websocket.Conn, error) {
	u := url.URL{
		Scheme: "ws",
		Host:   c.host,
		Path:   "/ws",
	}

	header := http.Header{}
	header.Set(model.CodeHeader, c.code)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
