package http

import "encoding/base64"

type Auth struct {
	Key   string
	Value string
}

type Connection interface {
	auth() *Auth
	getUrl() string
	verifyCertificate() bool
}

// TokenConnection authenticates with a static bearer token, for Orthanc
// deployments sitting behind an authorization plugin or reverse proxy.
// An empty token gives an anonymous connection.
type TokenConnection struct {
	url        string
	verifyCert bool
	token      string
}

func (c *TokenConnection) auth() *Auth {
	if len(c.token) > 0 {
		key := "Authorization"
		value := "Bearer " + c.token
		return &Auth{Key: key, Value: value}
	}
	return nil
}

func (c *TokenConnection) getUrl() string {
	return c.url
}

func (c *TokenConnection) verifyCertificate() bool {
	return c.verifyCert
}

// PasswordConnection authenticates with HTTP basic auth, Orthanc's
// native scheme (RegisteredUsers in the server configuration).
type PasswordConnection struct {
	url        string
	verifyCert bool
	username   string
	password   string
}

func (c PasswordConnection) basicAuth(username string, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}

func (c PasswordConnection) auth() *Auth {
	if len(c.username) > 0 && len(c.password) > 0 {
		key := "Authorization"
		value := "Basic " + c.basicAuth(c.username, c.password)
		return &Auth{Key: key, Value: value}
	}
	return nil
}

func (c PasswordConnection) getUrl() string {
	return c.url
}

func (c PasswordConnection) verifyCertificate() bool {
	return c.verifyCert
}
