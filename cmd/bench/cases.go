// README: Smoke-test cases covering the reservation lifecycle, payments, pricing and concurrency.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "FAIL", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "Apply migration SQL on demand",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "Schema matches migrations/0001_init.sql",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "API: server reachable",
			Focus: "Health endpoint answers",
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				resp, err := r.httpc.Get(base + "/health")
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				_ = resp.Body.Close()
				return Result{Status: "PASS", Latency: time.Since(start), Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			},
		},

		// Pricing
		httpCase("Quote: valid trip", base+"/api/quotes", map[string]any{
			"distance_km":   40.0,
			"vehicle_class": "standard",
			"pickup_at":     time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		}, []int{200}, nil),

		httpCase("Quote: unknown vehicle class -> 400", base+"/api/quotes", map[string]any{
			"distance_km":   40.0,
			"vehicle_class": "limousine",
			"pickup_at":     time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		}, []int{400}, nil),

		// Reservation flow
		httpCase("Reservation: create missing fields -> 400", base+"/api/reservations", map[string]any{}, []int{400}, nil),

		{
			Name:  "Reservation: full lifecycle",
			Focus: "create -> pay -> assign -> activate -> complete -> settlement",
			Run:   lifecycle,
		},

		// Payments
		httpCase("Payment: forged callback -> 401", base+"/api/payments/callback", map[string]any{
			"orderReference": "nonexistent",
			"status":         "approved",
			"amount":         100,
			"signature":      "deadbeef",
		}, []int{401}, nil),

		// Concurrency
		{
			Name:  "Concurrency: multi assign same reservation",
			Focus: "Exactly one driver wins the assignment",
			Run:   concurrentAssign,
		},

		// Performance
		{
			Name:  "Perf: quote throughput",
			Focus: "Sustained quote rate",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, base+"/api/quotes", map[string]any{
					"distance_km":   25.0,
					"vehicle_class": "comfort",
					"pickup_at":     time.Now().Add(24 * time.Hour).Format(time.RFC3339),
				})
			},
		},
	}
}

// lifecycle walks one reservation from booking to settlement, carrying the
// ids and the QR token between steps.
func lifecycle(ctx context.Context, r *Runner) Result {
	base := r.cfg.BaseURL
	start := time.Now()

	status, body, err := r.postJSON(ctx, base+"/api/reservations", map[string]any{
		"customer_id":    "bench-customer",
		"pickup_ref":     "Airport Terminal 2",
		"dropoff_ref":    "Hotel Seeblick",
		"pickup_at":      time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"passengers":     2,
		"vehicle_class":  "standard",
		"distance_km":    40.0,
		"payment_method": "bank_transfer",
	})
	if err != nil || status != http.StatusCreated {
		return Result{Status: "FAIL", Note: fmt.Sprintf("create status=%d err=%v", status, err)}
	}
	id, _ := body["id"].(string)
	if id == "" {
		return Result{Status: "FAIL", Note: "create returned no id"}
	}
	amount, _ := body["total_amount"].(float64)
	currency, _ := body["currency"].(string)

	status, body, err = r.postJSON(ctx, base+"/api/payments", map[string]any{
		"reservation_id": id,
		"amount":         int64(amount),
		"currency":       currency,
		"method":         "bank_transfer",
	})
	if err != nil || status != http.StatusCreated {
		return Result{Status: "FAIL", Note: fmt.Sprintf("open payment status=%d err=%v", status, err)}
	}
	txID, _ := body["id"].(string)
	if txID == "" {
		return Result{Status: "FAIL", Note: "open payment returned no id"}
	}

	status, _, err = r.postJSON(ctx, base+"/api/payments/"+txID+"/confirm-transfer", nil)
	if err != nil || status != http.StatusOK {
		return Result{Status: "FAIL", Note: fmt.Sprintf("confirm transfer status=%d err=%v", status, err)}
	}

	// The reservation is paid; opening another payment must be refused.
	status, _, _ = r.postJSON(ctx, base+"/api/payments", map[string]any{
		"reservation_id": id,
		"amount":         int64(amount),
		"currency":       currency,
		"method":         "bank_transfer",
	})
	if status != http.StatusConflict {
		return Result{Status: "FAIL", Note: fmt.Sprintf("reopen paid status=%d, want 409", status)}
	}

	status, body, err = r.postJSON(ctx, base+"/api/reservations/"+id+"/assign", map[string]any{
		"driver_id": "bench-driver",
	})
	if err != nil || status != http.StatusOK {
		return Result{Status: "FAIL", Note: fmt.Sprintf("assign status=%d err=%v", status, err)}
	}
	token, _ := body["qr_token"].(string)
	if token == "" {
		return Result{Status: "FAIL", Note: "assign returned no qr_token"}
	}

	status, _, _ = r.postJSON(ctx, base+"/api/reservations/"+id+"/activate", map[string]any{
		"token": "wrong-token",
	})
	if status != http.StatusForbidden {
		return Result{Status: "FAIL", Note: fmt.Sprintf("wrong token status=%d, want 403", status)}
	}

	status, _, err = r.postJSON(ctx, base+"/api/reservations/"+id+"/activate", map[string]any{
		"token": token,
	})
	if err != nil || status != http.StatusOK {
		return Result{Status: "FAIL", Note: fmt.Sprintf("activate status=%d err=%v", status, err)}
	}

	status, _, err = r.postJSON(ctx, base+"/api/reservations/"+id+"/complete", nil)
	if err != nil || status != http.StatusOK {
		return Result{Status: "FAIL", Note: fmt.Sprintf("complete status=%d err=%v", status, err)}
	}

	resp, err := r.httpc.Get(base + "/api/reservations/" + id + "/settlement")
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Status: "FAIL", Note: fmt.Sprintf("settlement status=%d", resp.StatusCode)}
	}

	return Result{Status: "PASS", Latency: time.Since(start)}
}

func concurrentAssign(ctx context.Context, r *Runner) Result {
	base := r.cfg.BaseURL
	_, body, err := r.postJSON(ctx, base+"/api/reservations", map[string]any{
		"customer_id":    "bench-customer",
		"pickup_ref":     "Central Station",
		"dropoff_ref":    "Airport Terminal 1",
		"pickup_at":      time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"passengers":     1,
		"vehicle_class":  "standard",
		"distance_km":    18.0,
		"payment_method": "bank_transfer",
	})
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	id, _ := body["id"].(string)
	if id == "" {
		return Result{Status: "FAIL", Note: "create returned no id"}
	}

	wg := sync.WaitGroup{}
	succ := 0
	mu := sync.Mutex{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, _, err := r.postJSON(ctx, base+"/api/reservations/"+id+"/assign", map[string]any{
				"driver_id": fmt.Sprintf("bench-driver-%d", i),
			})
			if err != nil {
				return
			}
			mu.Lock()
			if status >= 200 && status < 300 {
				succ++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if succ == 1 {
		return Result{Status: "PASS", Note: "success=1"}
	}
	return Result{Status: "FAIL", Note: fmt.Sprintf("success=%d", succ)}
}

func (r *Runner) postJSON(ctx context.Context, url string, body any) (int, map[string]any, error) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded, nil
}

func httpCase(name, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			var reader io.Reader
			if body != nil {
				b, _ := json.Marshal(body)
				reader = strings.NewReader(string(b))
			}
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
			req.Header.Set("Content-Type", "application/json")
			start := time.Now()
			resp, err := r.httpc.Do(req)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			latency := time.Since(start)

			if contains(okStatuses, resp.StatusCode) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			}
			if contains(pendingStatuses, resp.StatusCode) {
				return Result{Status: "PENDING", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
		},
	}
}

func perfLoad(ctx context.Context, r *Runner, url string, payload any) Result {
	b, _ := json.Marshal(payload)
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(b)))
				req.Header.Set("Content-Type", "application/json")
				resp, err := r.httpc.Do(req)
				if err != nil {
					mu.Lock()
					errCount++
					mu.Unlock()
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	cleaned := strings.Join(filtered, "\n")
	parts := strings.Split(cleaned, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
