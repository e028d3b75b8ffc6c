package store

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/etnz/aurum"
	"github.com/etnz/aurum/httpjson"
	"github.com/etnz/aurum/session"
)

// Tag names attached to every record written to the network.
const (
	TagContentType = "Content-Type"
	TagAppName     = "App-Name"
	TagType        = "Type"
	TagOwner       = "Owner"
	TagGoldID      = "Gold-ID"
	TagTokenAmount = "Token-Amount"

	AppName        = "AurumChain"
	RecordType     = "gold-registration"
	RecordMimeType = "application/json"
)

// Tag is a queryable name/value pair of a transaction.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Transaction is a signed write to the network.
type Transaction struct {
	Data      string `json:"data"` // base64url JSON record
	Tags      []Tag  `json:"tags"`
	Owner     string `json:"owner"`     // base64url public key
	Signature string `json:"signature"` // base64url signature of the raw data
}

// Node is a transaction found by a query.
type Node struct {
	ID   string
	Tags []Tag
}

// Tag returns the value of the named tag.
func (n Node) Tag(name string) (string, bool) {
	for _, t := range n.Tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// Gateway is the network side of the durable store.
type Gateway interface {
	Submit(ctx context.Context, r aurum.AssetRecord) (string, error)
	Query(ctx context.Context, tags []Tag) ([]Node, error)
	Data(ctx context.Context, id string) ([]byte, error)
}

// Keys provides the identity signing network writes. *session.Manager implements it.
type Keys interface {
	Identity() *session.Identity
}

// HTTPGateway talks to a durable store gateway over HTTP:
//
//	POST /tx       submits a signed Transaction and returns {"id": ...}
//	POST /graphql  finds transactions by tags
//	GET  /{id}     returns the data of a transaction
type HTTPGateway struct {
	BaseURL string
	Client  *http.Client
	Keys    Keys
}

// NewHTTPGateway returns a gateway with a bounded client timeout.
func NewHTTPGateway(baseURL string, keys Keys) *HTTPGateway {
	return &HTTPGateway{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: 20 * time.Second},
		Keys:    keys,
	}
}

// RecordTags returns the tags of a record write.
func RecordTags(r aurum.AssetRecord) []Tag {
	tags := []Tag{
		{TagContentType, RecordMimeType},
		{TagAppName, AppName},
		{TagType, RecordType},
		{TagOwner, r.Owner},
		{TagGoldID, r.UniqueIdentifier},
	}
	if r.TokenAmount != "" {
		tags = append(tags, Tag{TagTokenAmount, r.TokenAmount})
	}
	return tags
}

func (g *HTTPGateway) Submit(ctx context.Context, r aurum.AssetRecord) (string, error) {
	if g.Keys == nil || g.Keys.Identity() == nil {
		return "", session.ErrNoIdentity
	}
	id := g.Keys.Identity()
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	tx := Transaction{
		Data:      base64.RawURLEncoding.EncodeToString(data),
		Tags:      RecordTags(r),
		Owner:     base64.RawURLEncoding.EncodeToString(id.PublicKey()),
		Signature: base64.RawURLEncoding.EncodeToString(id.Sign(data)),
	}
	var resp any
	if err := httpjson.PostJSON(ctx, g.Client, g.BaseURL+"/tx", tx, &resp); err != nil {
		return "", fmt.Errorf("cannot submit transaction: %w", err)
	}
	txID, err := httpjson.String("$.id", resp)
	if err != nil {
		return "", fmt.Errorf("invalid transaction response: %w", err)
	}
	return txID, nil
}

// graphQL returns the transactions query filtering on tags.
func graphQL(tags []Tag) string {
	var b strings.Builder
	b.WriteString("query { transactions(tags: [")
	for i, t := range tags {
		if i > 0 {
			b.WriteString(", ")
		}
		name, _ := json.Marshal(t.Name)
		value, _ := json.Marshal([]string{t.Value})
		fmt.Fprintf(&b, "{ name: %s, values: %s }", name, value)
	}
	b.WriteString("]) { edges { node { id tags { name value } } } } }")
	return b.String()
}

func (g *HTTPGateway) Query(ctx context.Context, tags []Tag) ([]Node, error) {
	var resp any
	if err := httpjson.PostJSON(ctx, g.Client, g.BaseURL+"/graphql", map[string]string{"query": graphQL(tags)}, &resp); err != nil {
		return nil, fmt.Errorf("cannot query transactions: %w", err)
	}
	jnodes, err := httpjson.List("$.data.transactions.edges[*].node", resp)
	if err != nil {
		return nil, fmt.Errorf("invalid query response: %w", err)
	}
	nodes := make([]Node, 0, len(jnodes))
	for _, jn := range jnodes {
		id, err := httpjson.String("$.id", jn)
		if err != nil {
			return nil, fmt.Errorf("invalid query response: %w", err)
		}
		n := Node{ID: id}
		jtags, _ := httpjson.List("$.tags[*]", jn)
		for _, jt := range jtags {
			name, _ := httpjson.String("$.name", jt)
			value, _ := httpjson.String("$.value", jt)
			n.Tags = append(n.Tags, Tag{name, value})
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (g *HTTPGateway) Data(ctx context.Context, id string) ([]byte, error) {
	body, err := httpjson.Get(ctx, g.Client, g.BaseURL+"/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("cannot read transaction %s: %w", id, err)
	}
	// gateways may answer with the raw JSON record or its base64url encoding.
	if trimmed := strings.TrimSpace(string(body)); !strings.HasPrefix(trimmed, "{") {
		if raw, err := base64.RawURLEncoding.DecodeString(trimmed); err == nil {
			return raw, nil
		}
	}
	return body, nil
}

// Verify checks the signature of a transaction.
func Verify(tx Transaction) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(tx.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid data encoding: %w", err)
	}
	pub, err := base64.RawURLEncoding.DecodeString(tx.Owner)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, errors.New("invalid owner key")
	}
	sig, err := base64.RawURLEncoding.DecodeString(tx.Signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), data, sig) {
		return nil, errors.New("invalid signature")
	}
	return data, nil
}
