package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/koru/internal/app"
	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/interfaces"
	"github.com/bobmcallan/koru/internal/models"
	"github.com/bobmcallan/koru/internal/services/chat"
	"github.com/bobmcallan/koru/internal/services/prices"
)

// --- In-memory storage ---

// mockStorage implements interfaces.StorageManager with in-memory maps.
// Fail* switches force errors for failure-path tests.
type mockStorage struct {
	mu sync.Mutex

	Users    map[string]*models.User
	Profiles map[string]*models.Profile
	Sessions map[string]*models.Session
	Messages []*models.ChatMessage
	Prices   map[string]*models.CryptoPrice
	Holdings map[string]*models.Holding
	Keys     map[string]*models.ExchangeKey

	FailGetProfile  bool
	FailListRecent  bool
	FailSaveMessage bool
	FailGetUser     bool
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		Users:    make(map[string]*models.User),
		Profiles: make(map[string]*models.Profile),
		Sessions: make(map[string]*models.Session),
		Prices:   make(map[string]*models.CryptoPrice),
		Holdings: make(map[string]*models.Holding),
		Keys:     make(map[string]*models.ExchangeKey),
	}
}

func (m *mockStorage) UserStore() interfaces.UserStore               { return (*mockUserStore)(m) }
func (m *mockStorage) SessionStore() interfaces.SessionStore         { return (*mockSessionStore)(m) }
func (m *mockStorage) ChatStore() interfaces.ChatStore               { return (*mockChatStore)(m) }
func (m *mockStorage) MarketStore() interfaces.MarketStore           { return (*mockMarketStore)(m) }
func (m *mockStorage) PortfolioStore() interfaces.PortfolioStore     { return (*mockPortfolioStore)(m) }
func (m *mockStorage) ExchangeKeyStore() interfaces.ExchangeKeyStore { return (*mockKeyStore)(m) }
func (m *mockStorage) Close() error                                  { return nil }

// messagesFor returns stored messages for a user in insertion order.
func (m *mockStorage) messagesFor(userID string) []*models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ChatMessage
	for _, msg := range m.Messages {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	return out
}

type mockUserStore mockStorage

func (m *mockUserStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGetUser {
		return nil, errors.New("storage unavailable")
	}
	if u, ok := m.Users[userID]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errors.New("user not found")
}

func (m *mockUserStore) SaveUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[user.UserID] = user
	return nil
}

func (m *mockUserStore) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Users, userID)
	delete(m.Profiles, userID)
	var kept []*models.ChatMessage
	for _, msg := range m.Messages {
		if msg.UserID != userID {
			kept = append(kept, msg)
		}
	}
	m.Messages = kept
	return nil
}

func (m *mockUserStore) ListUsers(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.Users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockUserStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGetProfile {
		return nil, errors.New("storage unavailable")
	}
	if p, ok := m.Profiles[userID]; ok {
		return p, nil
	}
	return nil, errors.New("profile not found")
}

func (m *mockUserStore) SaveProfile(ctx context.Context, profile *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Profiles[profile.UserID] = profile
	return nil
}

func (m *mockUserStore) DeleteProfile(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Profiles, userID)
	return nil
}

func (m *mockUserStore) Close() error { return nil }

type mockSessionStore mockStorage

func (m *mockSessionStore) Save(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sessions[session.ID] = session
	return nil
}

func (m *mockSessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Sessions[id]; ok {
		return s, nil
	}
	return nil, errors.New("session not found")
}

func (m *mockSessionStore) Revoke(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.Sessions[id]; ok {
		s.Revoked = true
		s.RevokedAt = time.Now()
		return nil
	}
	return errors.New("session not found")
}

func (m *mockSessionStore) RevokeByUser(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.Sessions {
		if s.UserID == userID && !s.Revoked {
			s.Revoked = true
			s.RevokedAt = time.Now()
			count++
		}
	}
	return count, nil
}

type mockChatStore mockStorage

func (m *mockChatStore) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaveMessage {
		return errors.New("storage unavailable")
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

func (m *mockChatStore) ListRecent(ctx context.Context, userID string, limit int) ([]*models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailListRecent {
		return nil, errors.New("storage unavailable")
	}
	var all []*models.ChatMessage
	for _, msg := range m.Messages {
		if msg.UserID == userID {
			all = append(all, msg)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockChatStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*models.ChatMessage
	count := 0
	for _, msg := range m.Messages {
		if msg.UserID == userID {
			count++
		} else {
			kept = append(kept, msg)
		}
	}
	m.Messages = kept
	return count, nil
}

type mockMarketStore mockStorage

func (m *mockMarketStore) GetPrices(ctx context.Context) ([]*models.CryptoPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CryptoPrice
	for _, p := range m.Prices {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockMarketStore) SavePrice(ctx context.Context, price *models.CryptoPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prices[price.Symbol] = price
	return nil
}

type mockPortfolioStore mockStorage

func holdingKey(userID, symbol string) string { return userID + "_" + symbol }

func (m *mockPortfolioStore) ListHoldings(ctx context.Context, userID string) ([]*models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Holding
	for _, h := range m.Holdings {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *mockPortfolioStore) SaveHolding(ctx context.Context, holding *models.Holding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Holdings[holdingKey(holding.UserID, holding.Symbol)] = holding
	return nil
}

func (m *mockPortfolioStore) DeleteHolding(ctx context.Context, userID, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Holdings, holdingKey(userID, symbol))
	return nil
}

type mockKeyStore mockStorage

func (m *mockKeyStore) List(ctx context.Context, userID string) ([]*models.ExchangeKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ExchangeKey
	for _, k := range m.Keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Exchange < out[j].Exchange })
	return out, nil
}

func (m *mockKeyStore) Save(ctx context.Context, key *models.ExchangeKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Keys[key.UserID+"_"+key.Exchange] = key
	return nil
}

func (m *mockKeyStore) Delete(ctx context.Context, userID, exchange string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Keys, userID+"_"+exchange)
	return nil
}

// --- Fake generation client ---

// mockGenClient scripts the generation provider. Chunks are yielded in
// order; Err aborts the call before any stream exists. Gate, when set,
// blocks before the final chunk until released so tests can observe
// streaming mid-flight.
type mockGenClient struct {
	mu       sync.Mutex
	Chunks   []string
	Err      error
	Gate     chan struct{}
	Calls    int
	Requests []*models.GenerationRequest
}

func (m *mockGenClient) GenerateStream(ctx context.Context, req *models.GenerationRequest) (interfaces.GenerationStream, error) {
	m.mu.Lock()
	m.Calls++
	m.Requests = append(m.Requests, req)
	chunks := append([]string(nil), m.Chunks...)
	gate := m.Gate
	err := m.Err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &mockGenStream{chunks: chunks, gate: gate}, nil
}

func (m *mockGenClient) lastRequest() *models.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return nil
	}
	return m.Requests[len(m.Requests)-1]
}

type mockGenStream struct {
	chunks []string
	gate   chan struct{}
	pos    int
}

func (s *mockGenStream) Next() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	if s.gate != nil && s.pos == len(s.chunks)-1 {
		<-s.gate
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *mockGenStream) Close() error { return nil }

// --- Fake ticker client ---

type mockTickerClient struct {
	mu      sync.Mutex
	Tickers []*models.ExchangeTicker
	Err     error
	Calls   int
}

func (m *mockTickerClient) Get24hTickers(ctx context.Context, pairs []string) ([]*models.ExchangeTicker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Tickers, nil
}

func defaultTickers() []*models.ExchangeTicker {
	return []*models.ExchangeTicker{
		{Pair: "BTCUSDT", LastPrice: 64000, ChangePct24h: 2.5, High24h: 65000, Low24h: 62000, Volume: 12345},
		{Pair: "ETHUSDT", LastPrice: 3200, ChangePct24h: -1.2, High24h: 3300, Low24h: 3100, Volume: 54321},
		{Pair: "SOLUSDT", LastPrice: 150, ChangePct24h: 0.4, High24h: 155, Low24h: 145, Volume: 999},
		{Pair: "ADAUSDT", LastPrice: 0.45, ChangePct24h: 1.1, High24h: 0.47, Low24h: 0.44, Volume: 888},
		{Pair: "XRPUSDT", LastPrice: 0.6, ChangePct24h: 0.2, High24h: 0.62, Low24h: 0.58, Volume: 777},
		{Pair: "DOGEUSDT", LastPrice: 0.12, ChangePct24h: 5.0, High24h: 0.13, Low24h: 0.11, Volume: 666},
	}
}

// --- Test server construction ---

type testEnv struct {
	Server  *Server
	Storage *mockStorage
	Gen     *mockGenClient
	Ticker  *mockTickerClient
	Config  *common.Config
}

func newTestEnv() *testEnv {
	config := common.NewDefaultConfig()
	config.Auth.JWTSecret = "test-jwt-secret"
	config.Auth.SealSecret = "test-seal-secret"
	config.Logging.Level = "disabled"

	logger := common.NewSilentLogger()
	storage := newMockStorage()
	gen := &mockGenClient{Chunks: []string{"Hello ", "world"}}
	ticker := &mockTickerClient{Tickers: defaultTickers()}

	sealer, err := common.NewSealer(config.Auth.SealSecret)
	if err != nil {
		panic(err)
	}

	a := &app.App{
		Config:  config,
		Logger:  logger,
		Storage: storage,
		Sealer:  sealer,
		ChatService: chat.NewService(storage, gen,
			chat.WithHistoryWindow(config.Chat.HistoryWindow)),
		PricesService: prices.NewService(ticker, storage,
			prices.WithRefreshInterval(config.Prices.GetRefreshInterval())),
		StartupTime: time.Now(),
	}

	return &testEnv{
		Server:  NewServer(a),
		Storage: storage,
		Gen:     gen,
		Ticker:  ticker,
		Config:  config,
	}
}

// createUser stores a user and returns a valid bearer token for it.
func (e *testEnv) createUser(userID string, onboarded bool) string {
	now := time.Now()
	user := &models.User{
		UserID:     userID,
		Email:      userID + "@example.com",
		Name:       userID,
		Provider:   "email",
		Role:       models.RoleUser,
		Onboarded:  onboarded,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := e.Storage.UserStore().SaveUser(context.Background(), user); err != nil {
		panic(err)
	}
	token, err := e.Server.issueSession(context.Background(), user, "email")
	if err != nil {
		panic(fmt.Sprintf("issueSession failed: %v", err))
	}
	return token
}
