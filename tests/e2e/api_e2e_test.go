package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mentorlog/internal/db"
	"github.com/mentorlog/internal/handler"
	"github.com/mentorlog/internal/router"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type e2eSuite struct {
	handler http.Handler
	public  httpClient
	member  httpClient
	baseURL string
	habits  []uint
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler, withJar bool) *localClient {
	var jar http.CookieJar
	if withJar {
		if j, err := cookiejar.New(nil); err == nil {
			jar = j
		}
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

// fakeMentorDoer 用固定回复替代真实的模型接口
type fakeMentorDoer struct{}

func (fakeMentorDoer) Do(req *http.Request) (*http.Response, error) {
	body := `{
		"choices": [{"message": {"role": "assistant", "content": "[评价] 本周开局不错。\n[建议] 保持晨间节奏。\n[挑战] 明天早起十分钟。"}}],
		"usage": {"prompt_tokens": 100, "completion_tokens": 30}
	}`
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     http.StatusText(http.StatusOK),
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}, nil
}

func TestE2E_AllInterfaces(t *testing.T) {
	suite := newE2ESuite(t)

	t.Run("auth flow", suite.testAuthFlow)
	t.Run("habit apis", suite.testHabitAPIs)
	t.Run("log and stats apis", suite.testLogAndStatsAPIs)
	t.Run("mentor apis", suite.testMentorAPIs)
	t.Run("profile and settings apis", suite.testProfileAndSettingsAPIs)
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.User{},
		&db.HabitCategory{},
		&db.Habit{},
		&db.HabitLog{},
		&db.HabitLogEntry{},
		&db.UsageCounter{},
		&db.SystemSetting{},
	); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	db.DB = gdb

	uploadDir := t.TempDir()
	api := handler.NewAPI(db.DB, uploadDir, "/static/uploads")
	api.Mentors().SetHTTPClient(fakeMentorDoer{})
	engine := router.SetupRouterWith(api, "test-session-secret", uploadDir, "/static/uploads", false)

	return &e2eSuite{
		handler: engine,
		public:  newLocalClient(engine, false),
		member:  newLocalClient(engine, true),
		baseURL: "http://example.test",
	}
}

func (s *e2eSuite) testAuthFlow(t *testing.T) {
	t.Helper()

	resp := s.mustRequest(t, s.public, http.MethodGet, "/ping", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ping: expected 200, got %d", resp.StatusCode)
	}

	// 未登录访问受保护接口
	resp = s.mustRequest(t, s.public, http.MethodGet, "/api/stats/weekly", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", resp.StatusCode)
	}

	resp = s.mustRequestJSON(t, s.member, http.MethodPost, "/api/auth/register", map[string]interface{}{
		"username": "e2e-user",
		"password": "e2e-secret",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: expected 200, got %d body=%s", resp.StatusCode, readBody(t, resp))
	}

	// 会话 Cookie 必须能在纯 HTTP 下回传，否则后续请求全部掉回未登录
	var sessionCookie *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "mentorlog_session" {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected session cookie on register")
	}
	if sessionCookie.Secure {
		t.Fatal("session cookie must not be Secure for plain http deployments")
	}
	if sessionCookie.SameSite == http.SameSiteNoneMode {
		t.Fatal("session cookie must not use SameSite=None")
	}

	// 重复用户名
	resp = s.mustRequestJSON(t, s.public, http.MethodPost, "/api/auth/register", map[string]interface{}{
		"username": "e2e-user",
		"password": "whatever",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", resp.StatusCode)
	}

	resp = s.mustRequestJSON(t, s.member, http.MethodPost, "/api/auth/login", map[string]interface{}{
		"username": "e2e-user",
		"password": "e2e-secret",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testHabitAPIs(t *testing.T) {
	t.Helper()

	create := func(name, category, timeBlock string, minutes int, relapsable bool) uint {
		resp := s.mustRequestJSON(t, s.member, http.MethodPost, "/api/habits", map[string]interface{}{
			"name":             name,
			"category_name":    category,
			"time_block":       timeBlock,
			"duration_minutes": minutes,
			"relapsable":       relapsable,
		})
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("create habit %s: expected 200, got %d body=%s", name, resp.StatusCode, readBody(t, resp))
		}
		var payload struct {
			Habit struct {
				ID uint `json:"id"`
			} `json:"habit"`
		}
		decodeJSON(t, resp, &payload)
		return payload.Habit.ID
	}

	s.habits = []uint{
		create("冷水澡", "身体", "morning", 5, false),
		create("不刷短视频", "专注", "evening", 0, true),
	}

	resp := s.mustRequest(t, s.member, http.MethodGet, "/api/habits", nil, nil)
	defer resp.Body.Close()
	var listPayload struct {
		Habits []map[string]interface{} `json:"habits"`
	}
	decodeJSON(t, resp, &listPayload)
	if len(listPayload.Habits) != 2 {
		t.Fatalf("expected 2 habits, got %d", len(listPayload.Habits))
	}

	resp = s.mustRequest(t, s.member, http.MethodGet, "/api/habit-categories", nil, nil)
	defer resp.Body.Close()
	var catPayload struct {
		Categories []map[string]interface{} `json:"categories"`
	}
	decodeJSON(t, resp, &catPayload)
	if len(catPayload.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(catPayload.Categories))
	}

	resp = s.mustRequest(t, s.member, http.MethodGet, "/api/time-blocks", nil, nil)
	defer resp.Body.Close()
	var blockPayload struct {
		Blocks []struct {
			TimeBlock    string `json:"time_block"`
			TotalMinutes int    `json:"total_minutes"`
		} `json:"blocks"`
	}
	decodeJSON(t, resp, &blockPayload)
	if len(blockPayload.Blocks) != 2 {
		t.Fatalf("expected 2 time blocks, got %d", len(blockPayload.Blocks))
	}
	if blockPayload.Blocks[0].TimeBlock != "morning" || blockPayload.Blocks[0].TotalMinutes != 5 {
		t.Fatalf("unexpected morning block: %+v", blockPayload.Blocks[0])
	}

	// 非法时段
	resp = s.mustRequestJSON(t, s.member, http.MethodPost, "/api/habits", map[string]interface{}{
		"name":          "午夜冥想",
		"category_name": "心智",
		"time_block":    "midnight",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid time block: expected 400, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testLogAndStatsAPIs(t *testing.T) {
	t.Helper()
	today := time.Now().Format("2006-01-02")

	resp := s.mustRequest(t, s.member, http.MethodPost, "/api/logs/today", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ensure today log: expected 200, got %d", resp.StatusCode)
	}
	var logPayload struct {
		Log struct {
			ID      uint                     `json:"id"`
			LogDate string                   `json:"log_date"`
			Entries []map[string]interface{} `json:"entries"`
		} `json:"log"`
	}
	decodeJSON(t, resp, &logPayload)
	if logPayload.Log.LogDate != today {
		t.Fatalf("expected log date %s, got %s", today, logPayload.Log.LogDate)
	}
	if len(logPayload.Log.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(logPayload.Log.Entries))
	}

	// 勾选第一个习惯
	resp = s.mustRequestJSON(t, s.member, http.MethodPut,
		"/api/logs/"+today+"/entries/"+idStr(s.habits[0]), map[string]interface{}{
			"completed": true,
		})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set completion: expected 200, got %d body=%s", resp.StatusCode, readBody(t, resp))
	}

	// 第二个习惯记破戒，不影响完成统计
	resp = s.mustRequestJSON(t, s.member, http.MethodPut,
		"/api/logs/"+today+"/entries/"+idStr(s.habits[1]), map[string]interface{}{
			"relapsed": true,
		})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set relapse: expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.member, http.MethodGet, "/api/logs/"+today, nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get daily log: expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.member, http.MethodGet, "/api/stats/weekly", nil, nil)
	defer resp.Body.Close()
	var statsPayload struct {
		WeeklyCompletionRate int `json:"weekly_completion_rate"`
		CurrentStreak        int `json:"current_streak"`
		TotalHabits          int `json:"total_habits"`
	}
	decodeJSON(t, resp, &statsPayload)

	// 2 个习惯 × 7 天 = 14 次目标，完成 1 次 → round(100/14) = 7
	if statsPayload.WeeklyCompletionRate != 7 {
		t.Fatalf("expected completion rate 7, got %d", statsPayload.WeeklyCompletionRate)
	}
	if statsPayload.TotalHabits != 2 {
		t.Fatalf("expected 2 habits, got %d", statsPayload.TotalHabits)
	}
	if statsPayload.CurrentStreak != 1 {
		t.Fatalf("expected streak 1, got %d", statsPayload.CurrentStreak)
	}

	resp = s.mustRequest(t, s.member, http.MethodGet, "/api/stats/top-habits?days=7", nil, nil)
	defer resp.Body.Close()
	var topPayload struct {
		Habits []struct {
			HabitName       string `json:"habit_name"`
			CategoryName    string `json:"category_name"`
			CompletionCount int    `json:"completion_count"`
		} `json:"habits"`
	}
	decodeJSON(t, resp, &topPayload)
	if len(topPayload.Habits) != 1 {
		t.Fatalf("expected 1 top habit, got %d", len(topPayload.Habits))
	}
	if topPayload.Habits[0].HabitName != "冷水澡" || topPayload.Habits[0].CompletionCount != 1 {
		t.Fatalf("unexpected top habit: %+v", topPayload.Habits[0])
	}

	resp = s.mustRequest(t, s.member, http.MethodGet, "/api/stats/top-habits?days=abc", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid days: expected 400, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testMentorAPIs(t *testing.T) {
	t.Helper()

	resp := s.mustRequest(t, s.member, http.MethodGet, "/api/mentor/personas", nil, nil)
	defer resp.Body.Close()
	var personaPayload struct {
		Personas []struct {
			Key  string `json:"key"`
			Name string `json:"name"`
		} `json:"personas"`
	}
	decodeJSON(t, resp, &personaPayload)
	if len(personaPayload.Personas) != 3 {
		t.Fatalf("expected 3 personas, got %d", len(personaPayload.Personas))
	}

	// 未配置密钥时对话返回 503
	resp = s.mustRequestJSON(t, s.member, http.MethodPost, "/api/mentor/chat", map[string]interface{}{
		"persona": "coach",
		"message": "这周怎么样？",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("chat without key: expected 503, got %d", resp.StatusCode)
	}

	resp = s.mustRequestJSON(t, s.member, http.MethodPut, "/api/settings", map[string]interface{}{
		"ai_provider":    "openai",
		"openai_api_key": "sk-e2e",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update settings: expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequestJSON(t, s.member, http.MethodPost, "/api/mentor/chat", map[string]interface{}{
		"persona": "coach",
		"message": "这周怎么样？",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: expected 200, got %d body=%s", resp.StatusCode, readBody(t, resp))
	}
	var chatPayload struct {
		Persona struct {
			Key string `json:"key"`
		} `json:"persona"`
		Reply struct {
			Evaluation string `json:"evaluation"`
			Advice     string `json:"advice"`
			Challenge  string `json:"challenge"`
		} `json:"reply"`
		ReplyHTML struct {
			Evaluation string `json:"evaluation"`
		} `json:"reply_html"`
	}
	decodeJSON(t, resp, &chatPayload)
	if chatPayload.Persona.Key != "coach" {
		t.Fatalf("unexpected persona: %+v", chatPayload.Persona)
	}
	if chatPayload.Reply.Evaluation == "" || chatPayload.Reply.Advice == "" || chatPayload.Reply.Challenge == "" {
		t.Fatalf("expected all reply sections, got %+v", chatPayload.Reply)
	}
	if chatPayload.ReplyHTML.Evaluation == "" {
		t.Fatal("expected rendered html for evaluation")
	}

	// 未知人设
	resp = s.mustRequestJSON(t, s.member, http.MethodPost, "/api/mentor/chat", map[string]interface{}{
		"persona": "pirate",
		"message": "你好",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown persona: expected 400, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) testProfileAndSettingsAPIs(t *testing.T) {
	t.Helper()

	resp := s.mustRequest(t, s.member, http.MethodGet, "/api/profile", nil, nil)
	defer resp.Body.Close()
	var profilePayload struct {
		Profile struct {
			Username      string `json:"username"`
			Email         string `json:"email"`
			CurrentStreak int    `json:"current_streak"`
		} `json:"profile"`
	}
	decodeJSON(t, resp, &profilePayload)
	if profilePayload.Profile.Username != "e2e-user" {
		t.Fatalf("unexpected profile: %+v", profilePayload.Profile)
	}

	resp = s.mustRequestJSON(t, s.member, http.MethodPut, "/api/profile", map[string]interface{}{
		"email": "e2e@example.com",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update profile: expected 200, got %d", resp.StatusCode)
	}

	// 非法邮箱
	resp = s.mustRequestJSON(t, s.member, http.MethodPut, "/api/profile", map[string]interface{}{
		"email": "not-an-email",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid email: expected 400, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.member, http.MethodGet, "/api/settings", nil, nil)
	defer resp.Body.Close()
	var settingsPayload struct {
		Settings struct {
			SiteName     string `json:"site_name"`
			AIProvider   string `json:"ai_provider"`
			HasOpenAIKey bool   `json:"has_openai_key"`
			OpenAIAPIKey string `json:"openai_api_key"`
		} `json:"settings"`
	}
	decodeJSON(t, resp, &settingsPayload)
	if !settingsPayload.Settings.HasOpenAIKey {
		t.Fatal("expected openai key mask to be true")
	}
	if settingsPayload.Settings.OpenAIAPIKey != "" {
		t.Fatal("api key must not be echoed back")
	}

	// 登出后会话失效
	resp = s.mustRequest(t, s.member, http.MethodPost, "/api/auth/logout", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}

	resp = s.mustRequest(t, s.member, http.MethodGet, "/api/profile", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func (s *e2eSuite) mustRequest(t *testing.T, client httpClient, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.baseURL+path, body)
	if err != nil {
		t.Fatalf("failed to build request %s %s: %v", method, path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func (s *e2eSuite) mustRequestJSON(t *testing.T, client httpClient, method, path string, payload map[string]interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	return s.mustRequest(t, client, method, path, bytes.NewReader(data), headers)
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	body := readBody(t, resp)
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		t.Fatalf("failed to decode json: %v\nbody=%s", err, body)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(data)
}

func idStr(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
