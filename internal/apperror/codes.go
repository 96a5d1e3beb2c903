package apperror

// Code is a stable, machine-readable error identifier.
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain access
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeBlockNotFound            Code = "BLOCK_NOT_FOUND"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
	CodeLogFetchFailed           Code = "LOG_FETCH_FAILED"
)

// Event ingestion
const (
	CodeInvalidLogData Code = "INVALID_LOG_DATA"
	CodeUnknownEvent   Code = "UNKNOWN_EVENT"
)

// Markets, routing and pricing
const (
	CodeMarketNotFound       Code = "MARKET_NOT_FOUND"
	CodeInvalidMarketConfig  Code = "INVALID_MARKET_CONFIG"
	CodeTokenNotFound        Code = "TOKEN_NOT_FOUND"
	CodeRouteNotFound        Code = "ROUTE_NOT_FOUND"
	CodeInvalidLadder        Code = "INVALID_LADDER"
	CodeOrderbookFetchFailed Code = "ORDERBOOK_FETCH_FAILED"
	CodePriceUnavailable     Code = "PRICE_UNAVAILABLE"
)

// Collaborators
const (
	CodeSubgraphQueryFailed Code = "SUBGRAPH_QUERY_FAILED"
	CodeStoreWriteFailed    Code = "STORE_WRITE_FAILED"
	CodeStoreReadFailed     Code = "STORE_READ_FAILED"
	CodeWebSocketConnect    Code = "WEBSOCKET_CONNECT_FAILED"
	CodeWebSocketSendError  Code = "WEBSOCKET_SEND_ERROR"
	CodeWebSocketClosed     Code = "WEBSOCKET_CLOSED"
	CodeCircuitOpen         Code = "CIRCUIT_OPEN"
)
