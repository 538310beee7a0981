package odoo

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/kolo/xmlrpc"
)

// Client represents an Odoo XML-RPC client
type Client struct {
	Database  string
	Username  string
	Password  string
	CommonURL string
	ObjectURL string

	// Transport is used by the XML-RPC client; nil means http.DefaultTransport.
	Transport http.RoundTripper

	mu  sync.Mutex
	uid int
}

// NewClient creates a new Odoo client
func NewClient(url, db, username, password string) *Client {
	url = strings.TrimRight(url, "/")
	return &Client{
		Database:  db,
		Username:  username,
		Password:  password,
		CommonURL: url + "/xmlrpc/2/common",
		ObjectURL: url + "/xmlrpc/2/object",
	}
}

// Authenticate authenticates with Odoo and returns the user ID
func (c *Client) Authenticate() (int, error) {
	client, err := xmlrpc.NewClient(c.CommonURL, c.Transport)
	if err != nil {
		return 0, fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	args := []interface{}{c.Database, c.Username, c.Password, map[string]interface{}{}}
	var uid int
	if err := client.Call("authenticate", args, &uid); err != nil {
		return 0, fmt.Errorf("authentication failed: %w", err)
	}
	if uid == 0 {
		return 0, errors.New("authentication failed: invalid credentials")
	}

	c.mu.Lock()
	c.uid = uid
	c.mu.Unlock()
	return uid, nil
}

func (c *Client) session() (int, error) {
	c.mu.Lock()
	uid := c.uid
	c.mu.Unlock()
	if uid != 0 {
		return uid, nil
	}
	return c.Authenticate()
}

// execute calls execute_kw on model, authenticating first when needed.
func (c *Client) execute(model, method string, args []interface{}, kwargs map[string]interface{}, reply interface{}) error {
	uid, err := c.session()
	if err != nil {
		return err
	}
	client, err := xmlrpc.NewClient(c.ObjectURL, c.Transport)
	if err != nil {
		return fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	params := []interface{}{c.Database, uid, c.Password, model, method, args}
	if kwargs != nil {
		params = append(params, kwargs)
	}
	if err := client.Call("execute_kw", params, reply); err != nil {
		return fmt.Errorf("%s.%s: %w", model, method, err)
	}
	return nil
}

// SearchRead performs a generic search_read operation. result must point to
// a slice of structs with json tags named after the Odoo fields.
func (c *Client) SearchRead(model string, domain []interface{}, fields []string, limit, offset int, result interface{}) error {
	kwargs := map[string]interface{}{
		"fields": fields,
		"offset": offset,
		"order":  "id asc",
	}
	if limit > 0 {
		kwargs["limit"] = limit
	}

	var rawResult []map[string]interface{}
	if err := c.execute(model, "search_read", []interface{}{domain}, kwargs, &rawResult); err != nil {
		return err
	}

	// Convert raw maps to target structs through JSON.
	jsonData, err := json.Marshal(rawResult)
	if err != nil {
		return fmt.Errorf("failed to marshal raw result: %w", err)
	}
	if err := json.Unmarshal(jsonData, result); err != nil {
		return fmt.Errorf("failed to unmarshal into target: %w", err)
	}
	return nil
}

// Search performs a generic search operation and returns IDs
func (c *Client) Search(model string, domain []interface{}, limit int) ([]int64, error) {
	kwargs := map[string]interface{}{}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	var ids []int64
	if err := c.execute(model, "search", []interface{}{domain}, kwargs, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Create creates a new record
func (c *Client) Create(model string, values map[string]interface{}) (int64, error) {
	var id int64
	if err := c.execute(model, "create", []interface{}{values}, nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Write updates existing record(s)
func (c *Client) Write(model string, ids []int64, values map[string]interface{}) error {
	var success bool
	if err := c.execute(model, "write", []interface{}{ids, values}, nil, &success); err != nil {
		return err
	}
	if !success {
		return fmt.Errorf("%s.write returned false", model)
	}
	return nil
}
