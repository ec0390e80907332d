package captcha

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"wishguard/internal/antibot/config"
	"wishguard/internal/antibot/models"
	captchastore "wishguard/internal/antibot/store/captcha"
	dErrors "wishguard/pkg/domain-errors"
)

type countingRecorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *countingRecorder) RecordFailure(_ context.Context, ip string, counter models.IPCounter) (*models.IPReputation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[ip+"/"+string(counter)]++
	return &models.IPReputation{IP: ip}, nil
}

func (r *countingRecorder) count(ip string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[ip+"/"+string(models.CounterCaptchaFailures)]
}

type stubVerifier struct{ valid string }

func (v stubVerifier) VerifyToken(_ context.Context, token, _ string) (bool, error) {
	return token == v.valid, nil
}

type CaptchaSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	failures *countingRecorder
	manager  *Manager
}

func TestCaptchaSuite(t *testing.T) {
	suite.Run(t, new(CaptchaSuite))
}

const testIP = "203.0.113.5"

func (s *CaptchaSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.failures = &countingRecorder{}
	var err error
	s.manager, err = New(captchastore.NewInMemoryStore(),
		WithClock(func() time.Time { return s.now }),
		WithRand(rand.New(rand.NewPCG(7, 11))),
		WithFailureRecorder(s.failures),
		WithTokenVerifier(stubVerifier{valid: "good-token"}),
	)
	s.Require().NoError(err)
}

// evaluate solves "a op b = ?".
func evaluate(question string) string {
	var a, b int
	var op string
	if _, err := fmt.Sscanf(question, "%d %s %d = ?", &a, &op, &b); err != nil {
		panic(err)
	}
	switch op {
	case "+":
		return strconv.Itoa(a + b)
	case "-":
		return strconv.Itoa(a - b)
	default:
		return strconv.Itoa(a * b)
	}
}

func (s *CaptchaSuite) TestMathQuestions() {
	cfg := config.Default().Captcha
	rng := rand.New(rand.NewPCG(1, 2))
	for range 500 {
		q, answer := mathQuestion(cfg, rng)
		s.True(strings.HasSuffix(q, " = ?"), q)
		s.Equal(evaluate(q), answer, q)
		n, err := strconv.Atoi(answer)
		s.Require().NoError(err)
		s.GreaterOrEqual(n, 0, q)
	}
}

func (s *CaptchaSuite) TestGenerate() {
	s.Run("math challenge", func() {
		c, err := s.manager.Generate(s.ctx, "sess", testIP, models.ChallengeMath)
		s.Require().NoError(err)
		s.NotEmpty(c.ID)
		s.Equal(3, c.MaxAttempts)
		s.Equal(s.now.Add(10*time.Minute), c.ExpiresAt)
		s.Equal(evaluate(c.Question), c.CorrectAnswer)
	})

	s.Run("text challenge shows its code", func() {
		c, err := s.manager.Generate(s.ctx, "sess", testIP, models.ChallengeText)
		s.Require().NoError(err)
		s.Len(c.Question, 5)
		s.Equal(c.Question, c.CorrectAnswer)
	})

	s.Run("unknown type", func() {
		_, err := s.manager.Generate(s.ctx, "sess", testIP, models.ChallengeType("AUDIO"))
		s.True(dErrors.Is(err, dErrors.CodeInvalidRequest))
	})
}

func (s *CaptchaSuite) TestVerify() {
	s.Run("correct answer solves, second verify fails", func() {
		c, err := s.manager.Generate(s.ctx, "sess-a", testIP, models.ChallengeMath)
		s.Require().NoError(err)

		res, err := s.manager.Verify(s.ctx, c.ID, "sess-a", " "+evaluate(c.Question)+" ", testIP)
		s.Require().NoError(err)
		s.True(res.Success)

		res, err = s.manager.Verify(s.ctx, c.ID, "sess-a", evaluate(c.Question), testIP)
		s.Require().NoError(err)
		s.False(res.Success)
		s.Equal(dErrors.CodeAlreadySolved, res.Code)
	})

	s.Run("text answers ignore case and whitespace", func() {
		c, err := s.manager.Generate(s.ctx, "sess-b", testIP, models.ChallengeText)
		s.Require().NoError(err)
		res, err := s.manager.Verify(s.ctx, c.ID, "sess-b", "  "+strings.ToLower(c.CorrectAnswer)+"\n", testIP)
		s.Require().NoError(err)
		s.True(res.Success)
	})

	s.Run("another session cannot see the challenge", func() {
		c, err := s.manager.Generate(s.ctx, "sess-c", testIP, models.ChallengeMath)
		s.Require().NoError(err)
		before := s.failures.count(testIP)
		res, err := s.manager.Verify(s.ctx, c.ID, "other", evaluate(c.Question), testIP)
		s.Require().NoError(err)
		s.Equal(dErrors.CodeNotFound, res.Code)
		s.Equal(before, s.failures.count(testIP))
	})

	s.Run("budget is exhausted after three wrong answers", func() {
		c, err := s.manager.Generate(s.ctx, "sess-d", testIP, models.ChallengeMath)
		s.Require().NoError(err)
		before := s.failures.count(testIP)
		for i := range 3 {
			res, err := s.manager.Verify(s.ctx, c.ID, "sess-d", "-1", testIP)
			s.Require().NoError(err)
			s.False(res.Success)
			s.Contains(res.Message, fmt.Sprintf("%d attempts left", 2-i))
		}
		res, err := s.manager.Verify(s.ctx, c.ID, "sess-d", evaluate(c.Question), testIP)
		s.Require().NoError(err)
		s.False(res.Success)
		s.Equal(dErrors.CodeExhausted, res.Code)
		s.Equal(before+4, s.failures.count(testIP))
	})

	s.Run("expired challenge is rejected", func() {
		c, err := s.manager.Generate(s.ctx, "sess-e", testIP, models.ChallengeMath)
		s.Require().NoError(err)
		s.now = s.now.Add(11 * time.Minute)
		res, err := s.manager.Verify(s.ctx, c.ID, "sess-e", evaluate(c.Question), testIP)
		s.Require().NoError(err)
		s.Equal(dErrors.CodeExpired, res.Code)
	})
}

func (s *CaptchaSuite) TestConcurrentGuessesStayWithinBudget() {
	store := captchastore.NewInMemoryStore()
	manager, err := New(store, WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
	c, err := manager.Generate(s.ctx, "sess", testIP, models.ChallengeMath)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = manager.Verify(s.ctx, c.ID, "sess", "-1", testIP)
		}()
	}
	wg.Wait()

	stored, err := store.Get(s.ctx, c.ID, "sess")
	s.Require().NoError(err)
	s.Equal(3, stored.AttemptsCount)
}

func (s *CaptchaSuite) TestConcurrentGenerateSharesRandomSource() {
	store := captchastore.NewInMemoryStore()
	manager, err := New(store, WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)

	const workers, perWorker = 16, 50
	kinds := []models.ChallengeType{models.ChallengeMath, models.ChallengeText}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  = make(map[string]bool)
		errs []error
	)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				c, err := manager.Generate(s.ctx, fmt.Sprintf("sess-%d", w), testIP, kinds[i%len(kinds)])
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
				} else {
					ids[c.ID] = true
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Empty(errs)
	s.Len(ids, workers*perWorker)
}

func (s *CaptchaSuite) TestRecaptcha() {
	c, err := s.manager.Generate(s.ctx, "sess-r", testIP, models.ChallengeRecaptcha)
	s.Require().NoError(err)
	s.Empty(c.Question)

	res, err := s.manager.Verify(s.ctx, c.ID, "sess-r", "bad-token", testIP)
	s.Require().NoError(err)
	s.False(res.Success)

	res, err = s.manager.Verify(s.ctx, c.ID, "sess-r", "good-token", testIP)
	s.Require().NoError(err)
	s.True(res.Success)
}

func (s *CaptchaSuite) TestIsSatisfied() {
	c, err := s.manager.Generate(s.ctx, "sess-g", testIP, models.ChallengeMath)
	s.Require().NoError(err)

	ok, err := s.manager.IsSatisfied(s.ctx, c.ID, "sess-g")
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.manager.Verify(s.ctx, c.ID, "sess-g", evaluate(c.Question), testIP)
	s.Require().NoError(err)

	ok, err = s.manager.IsSatisfied(s.ctx, c.ID, "sess-g")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.manager.IsSatisfied(s.ctx, c.ID, "someone-else")
	s.Require().NoError(err)
	s.False(ok)

	s.now = s.now.Add(11 * time.Minute)
	ok, err = s.manager.IsSatisfied(s.ctx, c.ID, "sess-g")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *CaptchaSuite) TestSiteVerifyClient() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Require().NoError(r.ParseForm())
		s.Equal("secret", r.PostForm.Get("secret"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success": %t}`, r.PostForm.Get("response") == "token")
	}))
	defer srv.Close()

	client := NewSiteVerifyClient("secret").WithURL(srv.URL)
	ok, err := client.VerifyToken(s.ctx, "token", testIP)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = client.VerifyToken(s.ctx, "nope", testIP)
	s.Require().NoError(err)
	s.False(ok)
}
