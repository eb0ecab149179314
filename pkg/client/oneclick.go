package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"wallet-swap/pkg/abandonseed"
	"wallet-swap/pkg/swap"
	"wallet-swap/pkg/types"
)

// Provider names the pricing service on the rates it returns
const Provider = "1click"

const (
	// dry quotes only need to outlive the rate expiration
	quoteDeadline   = time.Hour
	depositDeadline = 24 * time.Hour
)

// ErrTokenNotSupported is returned when 1Click does not list a currency
var ErrTokenNotSupported = errors.New("token not supported by 1Click")

// Options configures a OneClickClient
type Options struct {
	JWTToken          string
	BaseURL           string
	SlippageBps       int
	RequestsPerSecond float64
	Seeds             *abandonseed.Provider
	Logger            *slog.Logger
}

// OneClickClient wraps the 1Click SDK. It is the pricing service of the swap
// session and requests deposit addresses for confirmed swaps.
type OneClickClient struct {
	client      *oneclick.APIClient
	jwtToken    string
	limiter     *rate.Limiter
	seeds       *abandonseed.Provider
	slippageBps int
	logger      *slog.Logger

	mu     sync.Mutex
	tokens []oneclick.TokenResponse
}

// DepositRequest asks for a real deposit address
type DepositRequest struct {
	From      *types.Currency
	To        *types.Currency
	Amount    decimal.Decimal // smallest units of From
	Recipient string
	RefundTo  string
}

// Deposit is where the user sends funds to execute a swap
type Deposit struct {
	Address      string
	Memo         string
	AmountIn     string
	AmountOut    string
	TimeEstimate time.Duration
	Deadline     time.Time
}

// NewOneClickClient creates a new 1Click API client
func NewOneClickClient(opts Options) *OneClickClient {
	config := oneclick.NewConfiguration()
	if opts.BaseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: strings.TrimRight(opts.BaseURL, "/")}}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OneClickClient{
		client:      oneclick.NewAPIClient(config),
		jwtToken:    opts.JWTToken,
		limiter:     rate.NewLimiter(limit, 1),
		seeds:       opts.Seeds,
		slippageBps: opts.SlippageBps,
		logger:      logger.With("component", "oneclick"),
	}
}

// authenticate waits for the rate limiter and attaches the JWT
func (c *OneClickClient) authenticate(ctx context.Context) (context.Context, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if c.jwtToken == "" {
		return ctx, nil
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.jwtToken), nil
}

// GetSupportedTokens retrieves all supported tokens. The list is fetched once
// per client.
func (c *OneClickClient) GetSupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens != nil {
		return c.tokens, nil
	}

	ctx, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	resp, httpResp, err := c.client.OneClickAPI.GetTokens(ctx).Execute()
	if err != nil {
		return nil, apiError("failed to get tokens", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	c.tokens = resp
	return resp, nil
}

// FindTokenForCurrency returns the 1Click token of a wallet currency
func (c *OneClickClient) FindTokenForCurrency(ctx context.Context, currency *types.Currency) (TokenInfo, error) {
	tokens, err := c.GetSupportedTokens(ctx)
	if err != nil {
		return TokenInfo{}, err
	}
	return MatchToken(TokenInfos(tokens), currency)
}

// GetExchangeRates quotes the exchange with a dry 1Click request. Both
// addresses are placeholders; no deposit address is reserved.
func (c *OneClickClient) GetExchangeRates(ctx context.Context, exchange swap.Exchange, tx types.Transaction) ([]swap.ExchangeRate, error) {
	from, to := exchange.FromCurrency(), exchange.ToCurrency()
	if from == nil || to == nil {
		return nil, fmt.Errorf("both currencies are required")
	}

	refundTo, err := c.seeds.Address(from)
	if err != nil {
		return nil, err
	}
	recipient, err := c.seeds.Address(to)
	if err != nil {
		return nil, err
	}

	quote, err := c.quote(ctx, true, DepositRequest{
		From:      from,
		To:        to,
		Amount:    tx.Amount,
		Recipient: recipient,
		RefundTo:  refundTo,
	}, time.Now().Add(quoteDeadline))
	if err != nil {
		return nil, err
	}

	r, err := RateFromAmounts(from, to, quote.GetAmountInFormatted(), quote.GetAmountOutFormatted())
	if err != nil {
		return nil, err
	}

	c.logger.Debug("quote received",
		"from", from.ID, "to", to.ID,
		"amount_in", quote.GetAmountInFormatted(),
		"amount_out", quote.GetAmountOutFormatted(),
		"rate", r.Rate.String())

	return []swap.ExchangeRate{r}, nil
}

// RequestDeposit requests a real quote and returns its deposit address
func (c *OneClickClient) RequestDeposit(ctx context.Context, req DepositRequest) (*Deposit, error) {
	if req.Recipient == "" {
		return nil, fmt.Errorf("recipient address is required")
	}
	if req.RefundTo == "" {
		return nil, fmt.Errorf("refund address is required")
	}

	deadline := time.Now().Add(depositDeadline)
	quote, err := c.quote(ctx, false, req, deadline)
	if err != nil {
		return nil, err
	}

	deposit := &Deposit{
		Address:      quote.GetDepositAddress(),
		AmountIn:     quote.GetAmountInFormatted(),
		AmountOut:    quote.GetAmountOutFormatted(),
		TimeEstimate: time.Duration(quote.GetTimeEstimate()) * time.Second,
		Deadline:     deadline,
	}
	if quote.HasDepositMemo() {
		deposit.Memo = quote.GetDepositMemo()
	}
	if deposit.Address == "" {
		return nil, fmt.Errorf("quote has no deposit address")
	}

	c.logger.Info("deposit address issued", "from", req.From.ID, "to", req.To.ID, "deposit_address", deposit.Address)
	return deposit, nil
}

func (c *OneClickClient) quote(ctx context.Context, dry bool, req DepositRequest, deadline time.Time) (*oneclick.Quote, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	sourceToken, err := c.FindTokenForCurrency(ctx, req.From)
	if err != nil {
		return nil, fmt.Errorf("source token error: %w", err)
	}
	destToken, err := c.FindTokenForCurrency(ctx, req.To)
	if err != nil {
		return nil, fmt.Errorf("destination token error: %w", err)
	}

	quoteReq := oneclick.NewQuoteRequest(
		dry,
		"EXACT_INPUT",
		float32(c.slippageBps),
		sourceToken.AssetID,
		"ORIGIN_CHAIN",
		destToken.AssetID,
		req.Amount.Truncate(0).String(),
		req.RefundTo,
		"ORIGIN_CHAIN",
		req.Recipient,
		"DESTINATION_CHAIN",
		deadline,
	)

	ctx, err = c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(ctx).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return nil, apiError("failed to get quote from API", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}

	quote := resp.GetQuote()
	return &quote, nil
}

// GetSwapStatus checks the execution status of a swap
func (c *OneClickClient) GetSwapStatus(ctx context.Context, depositAddress string) (*oneclick.GetExecutionStatusResponse, error) {
	ctx, err := c.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	resp, httpResp, err := c.client.OneClickAPI.GetExecutionStatus(ctx).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, apiError("failed to get status", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return resp, nil
}

// SubmitDepositTx submits the deposit transaction hash
func (c *OneClickClient) SubmitDepositTx(ctx context.Context, depositAddress, txHash string) error {
	ctx, err := c.authenticate(ctx)
	if err != nil {
		return err
	}

	req := oneclick.NewSubmitDepositTxRequest(depositAddress, txHash)

	_, httpResp, err := c.client.OneClickAPI.SubmitDepositTx(ctx).SubmitDepositTxRequest(*req).Execute()
	if err != nil {
		return apiError("failed to submit deposit", httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return nil
}

// RateFromAmounts derives a quote from the formatted amounts of a 1Click
// response
func RateFromAmounts(from, to *types.Currency, amountIn, amountOut string) (swap.ExchangeRate, error) {
	in, err := decimal.NewFromString(amountIn)
	if err != nil {
		return swap.ExchangeRate{}, fmt.Errorf("invalid amount in %q: %w", amountIn, err)
	}
	out, err := decimal.NewFromString(amountOut)
	if err != nil {
		return swap.ExchangeRate{}, fmt.Errorf("invalid amount out %q: %w", amountOut, err)
	}
	if !in.IsPositive() {
		return swap.ExchangeRate{}, fmt.Errorf("quote amount in must be positive, got %s", amountIn)
	}

	r := out.DivRound(in, 18)
	return swap.ExchangeRate{
		Rate:               r,
		MagnitudeAwareRate: r.Shift(to.Decimals - from.Decimals),
		Provider:           Provider,
		RateID:             uuid.NewString(),
		ToAmount:           out.Shift(to.Decimals).Truncate(0),
	}, nil
}

// apiError extracts the message of a failed 1Click call from its body
func apiError(what string, httpResp *http.Response, err error) error {
	if httpResp == nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	defer httpResp.Body.Close()

	bodyBytes, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(bodyBytes) == 0 {
		return fmt.Errorf("%s (status: %d): %w", what, httpResp.StatusCode, err)
	}

	var errorResp map[string]interface{}
	if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
		if message, ok := errorResp["message"].(string); ok {
			return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, message)
		}
		if errs, ok := errorResp["errors"]; ok {
			return fmt.Errorf("API error (status %d): %v", httpResp.StatusCode, errs)
		}
	}

	return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, strings.TrimSpace(string(bodyBytes)))
}
