package jwxt

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
)

// fakePortal mimics the jwxt portal closely enough for the login and
// fetch flows: captcha image endpoint, marker-based login responses and
// a cookie-gated score page.
type fakePortal struct {
	mu sync.Mutex

	account   string
	password  string
	challenge string

	scoresHTML string
	failScores bool

	valid map[string]bool

	rootHits      int
	challengeHits int
	submitHits    int
	scoreHits     int

	sessionCounter int
}

const sessionCookie = "JSESSIONID"

func newFakePortal() *fakePortal {
	return &fakePortal{
		account:   "2023001",
		password:  "hunter2",
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
	case rootPath:
		p.rootHits++
		fmt.Fprint(w, "<html><body>用户登录</body></html>")

	case challengePath:
		p.challengeHits++
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(bytes.Repeat([]byte{0xff, 0xd8, 0xee}, 64))

	case loginSubmitPath:
		p.submitHits++
		r.ParseForm()
		if r.PostFormValue("RANDOMCODE") != p.challenge {
			fmt.Fprint(w, "<html><body>用户登录 验证码错误</body></html>")
			return
		}
		account, password, ok := decodeCredentials(r.PostFormValue("encoded"))
		if !ok || account != p.account || password != p.password {
			fmt.Fprint(w, "<html><body>用户登录 密码错误</body></html>")
			return
		}
		p.sessionCounter++
		token := fmt.Sprintf("session-%d", p.sessionCounter)
		p.valid[token] = true
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/"})
		fmt.Fprint(w, "<html><body>登录成功</body></html>")

	case scoreListPath:
		p.scoreHits++
		if p.failScores {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		cookie, err := r.Cookie(sessionCookie)
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

// expireSessions invalidates every issued session token.
func (p *fakePortal) expireSessions() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.valid = map[string]bool{}
}

func (p *fakePortal) setScores(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scoresHTML = html
}

// scriptedSolver replays a fixed list of answers; once the script runs
// out it stops guessing.
type scriptedSolver struct {
	mu      sync.Mutex
	answers []string
}

func (s *scriptedSolver) Solve(ctx context.Context, image []byte) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.answers) == 0 {
		return "", false
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, true
}

type noGuessSolver struct{}

func (noGuessSolver) Solve(ctx context.Context, image []byte) (string, bool) {
	return "", false
}

func scoresPage(rows ...[16]string) string {
	var b strings.Builder
	b.WriteString("<html><body><table id=\"dataList\"><tr>")
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&b, "<th>h%d</th>", i)
	}
	b.WriteString("</tr>")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, col := range row {
			fmt.Fprintf(&b, "<td> %s </td>", col)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func scoreRowCells(courseID, name, score string) [16]string {
	return [16]string{
		"1", "2023-2024-1", courseID, name, "", score, "", "3.0",
		"48", "4.0", "", "考试", "正常考试", "必修", "理论", "专业课",
	}
}
