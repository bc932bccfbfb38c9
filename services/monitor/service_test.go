package monitor

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scorewatch-backend/lib/dingtalk"
	"scorewatch-backend/lib/scrapers/jwxt"
	"scorewatch-backend/lib/testutil"
	monitordb "scorewatch-backend/services/monitor/db"
)

// fakePortal stands in for the jwxt deployment: captcha endpoint,
// marker-based login responses and a cookie-gated score page.
type fakePortal struct {
	mu sync.Mutex

	creds     map[string]string
	challenge string

	scoresHTML string
	failScores bool

	valid          map[string]bool
	sessionCounter int
}

func newFakePortal() *fakePortal {
	return &fakePortal{
		creds: map[string]string{
			"2023001": "hunter2",
			"2023002": "letmein",
		},
		challenge: "ab3d",
		valid:     map[string]bool{},
	}
}

func (p *fakePortal) server(t *testing.T) *httptest.Server {
	server := httptest.NewServer(p)
	t.Cleanup(server.Close)
	return server
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.URL.Path {
	case "/jsxsd/":
		fmt.Fprint(w, "<html><body>用户登录</body></html>")

	case "/jsxsd/verifycode.servlet":
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(bytes.Repeat([]byte{0xff, 0xd8, 0xee}, 64))

	case "/jsxsd/xk/LoginToXkLdap":
		r.ParseForm()
		if r.PostFormValue("RANDOMCODE") != p.challenge {
			fmt.Fprint(w, "<html><body>用户登录 验证码错误</body></html>")
			return
		}
		account, password, ok := decodeCredentials(r.PostFormValue("encoded"))
		if !ok || p.creds[account] == "" || p.creds[account] != password {
			fmt.Fprint(w, "<html><body>用户登录 密码错误</body></html>")
			return
		}
		p.sessionCounter++
		token := fmt.Sprintf("session-%d", p.sessionCounter)
		p.valid[token] = true
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: token, Path: "/"})
		fmt.Fprint(w, "<html><body>登录成功</body></html>")

	case "/jsxsd/kscj/cjcx_list":
		if p.failScores {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		cookie, err := r.Cookie("JSESSIONID")
		if err != nil || !p.valid[cookie.Value] {
			fmt.Fprint(w, "<html><body>请输入验证码</body></html>")
			return
		}
		fmt.Fprint(w, p.scoresHTML)

	default:
		http.NotFound(w, r)
	}
}

func decodeCredentials(encoded string) (string, string, bool) {
	parts := strings.Split(encoded, "%%%")
	if len(parts) != 2 {
		return "", "", false
	}
	account, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", "", false
	}
	password, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", false
	}
	return string(account), string(password), true
}

func (p *fakePortal) expireSessions() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.valid = map[string]bool{}
}

func (p *fakePortal) setPassword(account, password string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds[account] = password
}

func (p *fakePortal) setScores(courses ...[2]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	b.WriteString("<html><body><table id=\"dataList\"><tr>")
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&b, "<th>h%d</th>", i)
	}
	b.WriteString("</tr>")
	for _, course := range courses {
		b.WriteString("<tr><td>1</td><td>2023-2024-1</td>")
		fmt.Fprintf(&b, "<td>%s</td><td>%s</td>", course[0], course[1])
		b.WriteString("<td></td><td>90</td><td></td><td>3.0</td><td>48</td><td>4.0</td>")
		b.WriteString("<td></td><td>考试</td><td>正常考试</td><td>必修</td><td>理论</td><td>专业课</td></tr>")
	}
	b.WriteString("</table></body></html>")
	p.scoresHTML = b.String()
}

type fixedSolver struct {
	answer string
}

func (s fixedSolver) Solve(ctx context.Context, image []byte) (string, bool) {
	return s.answer, true
}

type recordingNotifier struct {
	mu         sync.Mutex
	newScores  []recordedPush
	expired    []dingtalk.Webhook
	initReport []recordedPush
}

type recordedPush struct {
	hook dingtalk.Webhook
	rows []jwxt.ScoreRow
}

func (n *recordingNotifier) NotifyNewScores(ctx context.Context, hook dingtalk.Webhook, rows []jwxt.ScoreRow) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.newScores = append(n.newScores, recordedPush{hook, rows})
	return nil
}

func (n *recordingNotifier) NotifySessionExpired(ctx context.Context, hook dingtalk.Webhook) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, hook)
	return nil
}

func (n *recordingNotifier) NotifyInitReport(ctx context.Context, hook dingtalk.Webhook, rows []jwxt.ScoreRow) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.initReport = append(n.initReport, recordedPush{hook, rows})
	return nil
}

func newTestService(t *testing.T, portalURL string) (*Service, *recordingNotifier) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "monitor",
		DbSchema: monitordb.Schema,
	})
	t.Cleanup(cleanup)

	notifier := &recordingNotifier{}
	svc := NewService(res.DB, fixedSolver{"ab3d"}, notifier, Options{
		PortalBaseUrl: portalURL,
		CheckInterval: time.Hour,
		MaxConcurrent: 2,
	})
	return svc, notifier
}

func register(t *testing.T, svc *Service, account, password, hookURL string) string {
	userHash, err := svc.RegisterAccount(context.Background(), RegisterRequest{
		Account:  account,
		Password: password,
		Webhook:  dingtalk.Webhook{URL: hookURL},
	})
	require.NoError(t, err)
	return userHash
}

func TestRegisterAccount(t *testing.T) {
	portal := newFakePortal()
	portal.setScores([2]string{"MATH101", "微积分"})
	svc, notifier := newTestService(t, portal.server(t).URL)
	ctx := context.Background()

	userHash := register(t, svc, "2023001", "hunter2", "http://hooks.invalid/a")
	require.Equal(t, HashAccountID("2023001"), userHash)

	acct, err := svc.qry.GetAccount(ctx, userHash)
	require.NoError(t, err)
	require.EqualValues(t, 1, acct.Enabled)
	require.EqualValues(t, 0, acct.SessionExpired)
	require.NotContains(t, acct.EncryptedSession, "JSESSIONID")
	require.NotContains(t, acct.EncryptedCredential, "hunter2")

	require.Len(t, notifier.initReport, 1)
	require.Len(t, notifier.initReport[0].rows, 1)
	require.Equal(t, "MATH101", notifier.initReport[0].rows[0].CourseID)

	// the registration snapshot is the baseline, not news
	outcome := svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleNoChange, outcome.Status)
	require.Empty(t, notifier.newScores)
}

func TestRegisterBadCredentials(t *testing.T) {
	portal := newFakePortal()
	portal.setScores()
	svc, _ := newTestService(t, portal.server(t).URL)

	_, err := svc.RegisterAccount(context.Background(), RegisterRequest{
		Account:  "2023001",
		Password: "wrong",
	})
	require.ErrorIs(t, err, ErrBadCredentials)

	accounts, err := svc.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Empty(t, accounts)
}

func TestNewScoreNotification(t *testing.T) {
	portal := newFakePortal()
	portal.setScores([2]string{"MATH101", "微积分"})
	svc, notifier := newTestService(t, portal.server(t).URL)
	ctx := context.Background()

	userHash := register(t, svc, "2023001", "hunter2", "http://hooks.invalid/a")

	portal.setScores([2]string{"MATH101", "微积分"}, [2]string{"PHYS201", "大学物理"})
	outcome := svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleNewScores, outcome.Status)

	require.Len(t, notifier.newScores, 1)
	require.Len(t, notifier.newScores[0].rows, 1)
	require.Equal(t, "PHYS201", notifier.newScores[0].rows[0].CourseID)
	require.Equal(t, "http://hooks.invalid/a", notifier.newScores[0].hook.URL)

	acct, err := svc.qry.GetAccount(ctx, userHash)
	require.NoError(t, err)
	require.EqualValues(t, 1, acct.PushCount)

	// the same page again is old news
	outcome = svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleNoChange, outcome.Status)
	require.Len(t, notifier.newScores, 1)
}

func TestTransientFailureChangesNothing(t *testing.T) {
	portal := newFakePortal()
	portal.setScores([2]string{"MATH101", "微积分"})
	svc, notifier := newTestService(t, portal.server(t).URL)
	ctx := context.Background()

	userHash := register(t, svc, "2023001", "hunter2", "http://hooks.invalid/a")

	portal.failScores = true
	outcome := svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleError, outcome.Status)

	acct, err := svc.qry.GetAccount(ctx, userHash)
	require.NoError(t, err)
	require.EqualValues(t, 0, acct.SessionExpired)
	require.Empty(t, notifier.expired)

	// once the portal recovers the cycle picks up where it left off
	portal.failScores = false
	portal.setScores([2]string{"MATH101", "微积分"}, [2]string{"PHYS201", "大学物理"})
	outcome = svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleNewScores, outcome.Status)
}

func TestSilentRelogin(t *testing.T) {
	portal := newFakePortal()
	portal.setScores([2]string{"MATH101", "微积分"})
	svc, notifier := newTestService(t, portal.server(t).URL)
	ctx := context.Background()

	userHash := register(t, svc, "2023001", "hunter2", "http://hooks.invalid/a")

	portal.expireSessions()
	outcome := svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleRelogin, outcome.Status)
	require.Empty(t, notifier.expired)

	acct, err := svc.qry.GetAccount(ctx, userHash)
	require.NoError(t, err)
	require.EqualValues(t, 0, acct.SessionExpired)

	// the refreshed session carries the next cycle
	outcome = svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleNoChange, outcome.Status)
}

func TestReloginSurfacesNewScores(t *testing.T) {
	portal := newFakePortal()
	portal.setScores([2]string{"MATH101", "微积分"})
	svc, notifier := newTestService(t, portal.server(t).URL)
	ctx := context.Background()

	userHash := register(t, svc, "2023001", "hunter2", "http://hooks.invalid/a")

	portal.expireSessions()
	portal.setScores([2]string{"MATH101", "微积分"}, [2]string{"PHYS201", "大学物理"})
	outcome := svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleRelogin, outcome.Status)
	require.Len(t, notifier.newScores, 1)
	require.Equal(t, "PHYS201", notifier.newScores[0].rows[0].CourseID)
}

func TestExpiredAccountNotifiedOnce(t *testing.T) {
	portal := newFakePortal()
	portal.setScores([2]string{"MATH101", "微积分"})
	svc, notifier := newTestService(t, portal.server(t).URL)
	ctx := context.Background()

	userHash := register(t, svc, "2023001", "hunter2", "http://hooks.invalid/a")

	// the portal password changed out from under the stored credential
	portal.expireSessions()
	portal.setPassword("2023001", "different")

	outcome := svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleExpired, outcome.Status)
	require.Len(t, notifier.expired, 1)

	acct, err := svc.qry.GetAccount(ctx, userHash)
	require.NoError(t, err)
	require.EqualValues(t, 1, acct.SessionExpired)

	// degraded accounts are refused without touching the portal or the
	// webhook again
	outcome = svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleExpired, outcome.Status)
	require.Len(t, notifier.expired, 1)

	results := svc.RunCycleAll(ctx)
	require.NotContains(t, results, userHash)
	require.Len(t, notifier.expired, 1)
}

func TestAccountIsolation(t *testing.T) {
	portal := newFakePortal()
	portal.setScores([2]string{"MATH101", "微积分"})
	svc, notifier := newTestService(t, portal.server(t).URL)
	ctx := context.Background()

	broken := register(t, svc, "2023001", "hunter2", "http://hooks.invalid/broken")
	healthy := register(t, svc, "2023002", "letmein", "http://hooks.invalid/healthy")

	// wreck the first account's vault entries and warm session
	_, err := svc.db.ExecContext(ctx,
		"UPDATE accounts SET encrypted_session = 'garbage', encrypted_credential = '' WHERE user_hash = ?",
		broken)
	require.NoError(t, err)
	svc.sessions.Remove(broken)

	portal.setScores([2]string{"MATH101", "微积分"}, [2]string{"PHYS201", "大学物理"})
	results := svc.RunCycleAll(ctx)
	require.Len(t, results, 2)
	require.Equal(t, CycleExpired, results[broken].Status)
	require.Equal(t, CycleNewScores, results[healthy].Status)

	require.Len(t, notifier.expired, 1)
	require.Equal(t, "http://hooks.invalid/broken", notifier.expired[0].URL)
	require.Len(t, notifier.newScores, 1)
	require.Equal(t, "http://hooks.invalid/healthy", notifier.newScores[0].hook.URL)
}

func TestToggleAndDelete(t *testing.T) {
	portal := newFakePortal()
	portal.setScores([2]string{"MATH101", "微积分"})
	svc, _ := newTestService(t, portal.server(t).URL)
	ctx := context.Background()

	userHash := register(t, svc, "2023001", "hunter2", "http://hooks.invalid/a")

	enabled, err := svc.ToggleAccount(ctx, userHash)
	require.NoError(t, err)
	require.False(t, enabled)

	outcome := svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleError, outcome.Status)

	enabled, err = svc.ToggleAccount(ctx, userHash)
	require.NoError(t, err)
	require.True(t, enabled)

	outcome = svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleNoChange, outcome.Status)

	require.NoError(t, svc.DeleteAccount(ctx, userHash))
	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	require.Empty(t, accounts)

	outcome = svc.RunCycleOne(ctx, userHash)
	require.Equal(t, CycleError, outcome.Status)
}
