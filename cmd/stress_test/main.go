package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/velocity/internal/core/domain"
	"github.com/rl1809/velocity/internal/core/service"
	"github.com/rl1809/velocity/internal/logging"
)

const (
	companies          = 5
	requestsPerCompany = 50
	percentagePerOwner = 5.0
	queueSize          = 100
)

func main() {
	// rejections are logged at info; keep the report readable
	slog.SetDefault(logging.New(os.Stderr, "warn", "text"))

	if !run(context.Background()) {
		os.Exit(1)
	}
}

// run drives the load and reports whether every check passed.
func run(ctx context.Context) bool {
	ledger := service.NewOwnerLedger(queueSize)
	defer ledger.Close()

	// Drain the change feed in background
	go func() {
		for range ledger.Changes() {
		}
	}()

	companyIDs := make([]uuid.UUID, companies)
	for i := range companyIDs {
		companyIDs[i] = uuid.New()
	}

	// Counters
	var successCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for _, companyID := range companyIDs {
		for i := 0; i < requestsPerCompany; i++ {
			wg.Add(1)
			go func(companyID uuid.UUID, n int) {
				defer wg.Done()

				_, err := ledger.UpsertOwner(ctx, domain.Owner{
					ID:         uuid.New(),
					CompanyID:  companyID,
					Name:       fmt.Sprintf("owner-%d", n),
					Percentage: percentagePerOwner,
				})
				if err == nil {
					successCount.Add(1)
				} else {
					failCount.Add(1)
				}
			}(companyID, i)
		}
	}

	wg.Wait()
	elapsed := time.Since(start)

	total := companies * requestsPerCompany
	wantSuccess := companies * int(service.MaxCompanyPercentage/percentagePerOwner)
	success := int(successCount.Load())
	fail := int(failCount.Load())

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Companies:        %d\n", companies)
	fmt.Printf("Total Requests:   %d\n", total)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	if success == wantSuccess && fail == total-wantSuccess {
		fmt.Printf("PASS: exactly %d owners accepted, %d rejected\n", wantSuccess, total-wantSuccess)
	} else {
		ok = false
		fmt.Printf("FAIL: expected %d success/%d fail, got %d/%d\n",
			wantSuccess, total-wantSuccess, success, fail)
	}

	// Verify the cap per company
	for _, companyID := range companyIDs {
		var sum float64
		for _, o := range ledger.GetOwnersByCompany(ctx, companyID) {
			sum += o.Percentage
		}
		if sum > service.MaxCompanyPercentage {
			ok = false
			fmt.Printf("FAIL: company %s holds %.2f%%\n", companyID, sum)
		}
	}
	if ok {
		fmt.Println("PASS: no company above 100%")
	}
	return ok
}
