package casper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/knotx/relayer/pkg/rpcpool"
)

const rpcCallTimeout = 10 * time.Second

// Casper nodes speak JSON-RPC 2.0, so the generic go-ethereum rpc client
// works against them without a chain specific SDK.

func dialRPC(ctx context.Context, endpoint rpcpool.Endpoint) (*rpc.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, rpcCallTimeout)
	defer cancel()
	client, err := rpc.DialContext(dialCtx, endpoint.RequestURL())
	if err != nil {
		return nil, fmt.Errorf("failed to dial casper endpoint %s: %w", endpoint.URL, err)
	}
	return client, nil
}

func newRPCPool(role string, endpoints []rpcpool.Endpoint) (*rpcpool.Pool[*rpc.Client], error) {
	return rpcpool.NewPool(role, endpoints, dialRPC,
		rpcpool.WithCloseFunc(func(c *rpc.Client) { c.Close() }))
}

// ---- Node response shapes (the slices of the RPC surface the relayer uses) ----

type nodeStatus struct {
	ChainspecName      string     `json:"chainspec_name"`
	LastAddedBlockInfo *blockInfo `json:"last_added_block_info"`
}

type blockInfo struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

type chainGetBlockResult struct {
	Block *jsonBlock `json:"block"`
}

type jsonBlock struct {
	Hash   string      `json:"hash"`
	Header blockHeader `json:"header"`
	Body   blockBody   `json:"body"`
}

type blockHeader struct {
	Height uint64 `json:"height"`
}

type blockBody struct {
	DeployHashes []string `json:"deploy_hashes"`
}

type getDeployResult struct {
	Deploy           jsonDeploy             `json:"deploy"`
	ExecutionResults []executionResultEntry `json:"execution_results"`
}

type jsonDeploy struct {
	Hash    string             `json:"hash"`
	Session executableItemJSON `json:"session"`
}

type executableItemJSON struct {
	StoredContractByHash *storedContractJSON `json:"StoredContractByHash,omitempty"`
}

type storedContractJSON struct {
	Hash       string         `json:"hash"`
	EntryPoint string         `json:"entry_point"`
	Args       []namedArgJSON `json:"args"`
}

// namedArgJSON decodes Casper's ["name", {cl_type, bytes, parsed}] tuples.
type namedArgJSON struct {
	Name  string
	Value clValueJSON
}

func (a *namedArgJSON) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &a.Name); err != nil {
		return err
	}
	return json.Unmarshal(tuple[1], &a.Value)
}

type clValueJSON struct {
	CLType json.RawMessage `json:"cl_type"`
	Bytes  string          `json:"bytes"`
	Parsed json.RawMessage `json:"parsed"`
}

type executionResultEntry struct {
	BlockHash string          `json:"block_hash"`
	Result    executionResult `json:"result"`
}

type executionResult struct {
	Success *executionSuccess `json:"Success,omitempty"`
	Failure *executionFailure `json:"Failure,omitempty"`
}

type executionSuccess struct {
	Cost string `json:"cost"`
}

type executionFailure struct {
	Cost         string `json:"cost"`
	ErrorMessage string `json:"error_message"`
}

type stateRootHashResult struct {
	StateRootHash string `json:"state_root_hash"`
}

type stateGetItemResult struct {
	StoredValue storedValueJSON `json:"stored_value"`
}

type storedValueJSON struct {
	CLValue *clValueJSON `json:"CLValue,omitempty"`
}

type putDeployResult struct {
	DeployHash string `json:"deploy_hash"`
}

// Client wraps the node RPC surface behind the rotating endpoint pool.
type Client struct {
	pool *rpcpool.Pool[*rpc.Client]
}

func NewClient(role string, endpoints []rpcpool.Endpoint) (*Client, error) {
	pool, err := newRPCPool(role, endpoints)
	if err != nil {
		return nil, err
	}
	return &Client{pool: pool}, nil
}

func (c *Client) Close() {
	c.pool.Close()
}

func call[R any](ctx context.Context, c *Client, method string, params ...interface{}) (R, error) {
	return rpcpool.ExecuteWithRotation(ctx, c.pool, 0,
		func(ctx context.Context, client *rpc.Client) (R, error) {
			var result R
			callCtx, cancel := context.WithTimeout(ctx, rpcCallTimeout)
			defer cancel()
			err := client.CallContext(callCtx, &result, method, params...)
			return result, err
		})
}

func (c *Client) Status(ctx context.Context) (*nodeStatus, error) {
	status, err := call[nodeStatus](ctx, c, "info_get_status")
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) LatestBlock(ctx context.Context) (*jsonBlock, error) {
	result, err := call[chainGetBlockResult](ctx, c, "chain_get_block")
	if err != nil {
		return nil, err
	}
	if result.Block == nil {
		return nil, fmt.Errorf("node returned no latest block")
	}
	return result.Block, nil
}

func (c *Client) BlockAtHeight(ctx context.Context, height uint64) (*jsonBlock, error) {
	params := map[string]interface{}{
		"block_identifier": map[string]uint64{"Height": height},
	}
	result, err := call[chainGetBlockResult](ctx, c, "chain_get_block", params)
	if err != nil {
		return nil, err
	}
	if result.Block == nil {
		return nil, fmt.Errorf("node returned no block at height %d", height)
	}
	return result.Block, nil
}

func (c *Client) GetDeploy(ctx context.Context, deployHash string) (*getDeployResult, error) {
	result, err := call[getDeployResult](ctx, c, "info_get_deploy", map[string]string{"deploy_hash": deployHash})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) PutDeploy(ctx context.Context, deploy *Deploy) (string, error) {
	result, err := call[putDeployResult](ctx, c, "account_put_deploy", map[string]interface{}{"deploy": deploy})
	if err != nil {
		return "", err
	}
	return result.DeployHash, nil
}

// GatewayNonce reads the gateway contract's nonce uref through the current
// state root. The listener seeds its nonce cursor with it at initialize
// time.
func (c *Client) GatewayNonce(ctx context.Context, gatewayHash string) (uint64, error) {
	root, err := call[stateRootHashResult](ctx, c, "chain_get_state_root_hash")
	if err != nil {
		return 0, fmt.Errorf("failed to fetch state root hash: %w", err)
	}
	params := map[string]interface{}{
		"state_root_hash": root.StateRootHash,
		"key":             "hash-" + normalizeHash(gatewayHash),
		"path":            []string{"nonce"},
	}
	item, err := call[stateGetItemResult](ctx, c, "state_get_item", params)
	if err != nil {
		return 0, fmt.Errorf("failed to query gateway nonce: %w", err)
	}
	if item.StoredValue.CLValue == nil {
		return 0, fmt.Errorf("gateway nonce key holds no CLValue")
	}
	var nonce uint64
	if err := json.Unmarshal(item.StoredValue.CLValue.Parsed, &nonce); err != nil {
		// Some node versions render U64 parsed values as strings.
		var text string
		if strErr := json.Unmarshal(item.StoredValue.CLValue.Parsed, &text); strErr != nil {
			return 0, fmt.Errorf("unparseable gateway nonce value: %w", err)
		}
		if _, scanErr := fmt.Sscanf(text, "%d", &nonce); scanErr != nil {
			return 0, fmt.Errorf("unparseable gateway nonce value %q", text)
		}
	}
	return nonce, nil
}
