// Package ledger reads and writes gold registrations on the on-chain ledger.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/etnz/aurum"
	"github.com/etnz/aurum/httpjson"
)

// ZeroID is the parent identifier of an asset without parent.
const ZeroID = "0x000000000000000000000000"

// IDLength is the length of an asset identifier: "0x" and 24 hex digits.
const IDLength = len(ZeroID)

// JSON-RPC methods of the gold registry.
const (
	MethodGetAllGoldDetails = "gold_getAllGoldDetails"
	MethodRegisterGold      = "gold_registerGold"
)

// Detail is a registration as returned by getAllGoldDetails.
type Detail struct {
	UniqueIdentifier     string `json:"uniqueIdentifier"`
	Weight               string `json:"weight"`
	Purity               string `json:"purity"`
	Description          string `json:"description"`
	CertificationDetails string `json:"certificationDetails"`
	CertificationDate    string `json:"certificationDate"`
	MineLocation         string `json:"mineLocation"`
	ParentGoldID         string `json:"parentGoldId"`
	HasParentGoldID      bool   `json:"hasParentGoldId"`
}

// Record converts a detail into an asset record. The ledger does not know owners.
func (d Detail) Record() aurum.AssetRecord {
	r := aurum.AssetRecord{
		UniqueIdentifier:     d.UniqueIdentifier,
		Weight:               d.Weight,
		Purity:               d.Purity,
		Description:          d.Description,
		CertificationDetails: d.CertificationDetails,
		CertificationDate:    d.CertificationDate,
		MineLocation:         d.MineLocation,
	}
	if d.HasParentGoldID && d.ParentGoldID != ZeroID {
		r.ParentGoldID = d.ParentGoldID
	}
	return r
}

// params returns the registerGold arguments of a registration.
func params(reg aurum.Registration) map[string]string {
	parent := strings.TrimSpace(reg.ParentGoldID)
	if parent == "" {
		parent = ZeroID
	}
	return map[string]string{
		"weight":               reg.Weight,
		"purity":               reg.Purity,
		"description":          reg.Description,
		"certificationDetails": reg.CertificationDetails,
		"certificationDate":    reg.CertificationDate,
		"mineLocation":         reg.MineLocation,
		"parentGoldId":         parent,
	}
}

// IdentifierFromReceipt extracts the asset identifier of a registerGold
// transaction receipt: the second topic of its first log, truncated.
func IdentifierFromReceipt(receipt any) (string, error) {
	topic, err := httpjson.String("$.logs[0].topics[1]", receipt)
	if err != nil {
		return "", fmt.Errorf("receipt has no registration log: %w", err)
	}
	if len(topic) < IDLength {
		return "", fmt.Errorf("invalid registration topic %q", topic)
	}
	return topic[:IDLength], nil
}

// Client is a JSON-RPC 2.0 client of the gold registry.
type Client struct {
	Endpoint string
	HTTP     *http.Client

	seq atomic.Int64
}

var _ aurum.Ledger = (*Client)(nil)
var _ aurum.LedgerRegistrar = (*Client)(nil)

// NewClient returns a client of the registry at endpoint.
func NewClient(endpoint string) *Client {
	return &Client{Endpoint: endpoint, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// call invokes method and returns the decoded "result" member.
func (c *Client) call(ctx context.Context, method string, params ...any) (any, error) {
	req := rpcRequest{JSONRPC: "2.0", ID: c.seq.Add(1), Method: method, Params: params}
	var resp any
	if err := httpjson.PostJSON(ctx, c.HTTP, c.Endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if msg, err := httpjson.String("$.error.message", resp); err == nil {
		return nil, fmt.Errorf("%s: %s", method, msg)
	}
	result, err := httpjson.Path("$.result", resp, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return result, nil
}

// GoldDetails returns the registrations of identity.
func (c *Client) GoldDetails(ctx context.Context, identity string) ([]aurum.AssetRecord, error) {
	result, err := c.call(ctx, MethodGetAllGoldDetails, identity)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	items, err := httpjson.List("$[*]", result)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MethodGetAllGoldDetails, err)
	}
	records := make([]aurum.AssetRecord, 0, len(items))
	for _, item := range items {
		var d Detail
		if err := remarshal(item, &d); err != nil {
			return nil, fmt.Errorf("%s: invalid detail: %w", MethodGetAllGoldDetails, err)
		}
		records = append(records, d.Record())
	}
	return records, nil
}

// RegisterGold submits a registration and returns the asset identifier found in the receipt.
func (c *Client) RegisterGold(ctx context.Context, identity string, reg aurum.Registration) (string, error) {
	if identity == "" {
		return "", errors.New("a ledger identity is required to register")
	}
	receipt, err := c.call(ctx, MethodRegisterGold, identity, params(reg))
	if err != nil {
		return "", err
	}
	return IdentifierFromReceipt(receipt)
}

func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
