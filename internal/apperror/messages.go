package apperror

var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeBlockNotFound:            "Block not found",
	CodeContractCallFailed:       "Smart contract call failed",
	CodeLogFetchFailed:           "Failed to fetch exchange logs",

	CodeInvalidLogData: "Malformed exchange log data",
	CodeUnknownEvent:   "Unknown exchange event topic",

	CodeMarketNotFound:       "Market not found",
	CodeInvalidMarketConfig:  "Invalid market configuration",
	CodeTokenNotFound:        "Token not found",
	CodeRouteNotFound:        "No route between tokens",
	CodeInvalidLadder:        "Invalid scale order parameters",
	CodeOrderbookFetchFailed: "Failed to fetch order book",
	CodePriceUnavailable:     "No price available for market",

	CodeSubgraphQueryFailed: "Subgraph query failed",
	CodeStoreWriteFailed:    "Failed to persist ledger",
	CodeStoreReadFailed:     "Failed to load ledger",
	CodeWebSocketConnect:    "Failed to connect WebSocket",
	CodeWebSocketSendError:  "Failed to send WebSocket message",
	CodeWebSocketClosed:     "WebSocket connection closed",
	CodeCircuitOpen:         "Circuit breaker is open",
}
