package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// event mirrors the document shape the remote store accepts on /v1/events.
type event struct {
	ID             string    `json:"id"`
	EventType      string    `json:"event_type"`
	MedicationID   string    `json:"medication_id"`
	MedicationName string    `json:"medication_name"`
	PatientID      string    `json:"patient_id"`
	PatientName    string    `json:"patient_name"`
	CaregiverID    string    `json:"caregiver_id"`
	Timestamp      time.Time `json:"timestamp"`
	SyncStatus     string    `json:"sync_status"`
}

var eventTypes = []string{"created", "updated", "deleted", "dose_taken", "dose_missed"}

func main() {
	targetURL := flag.String("url", "http://localhost:8080/v1/events", "Target URL for event ingestion")
	deviceKey := flag.String("device-key", "supersecretkey", "Device key for authentication")
	patientID := flag.String("patient", "load-test-patient", "Patient id stamped on generated events")
	caregiverID := flag.String("caregiver", "load-test-caregiver", "Caregiver id stamped on generated events")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 1000, "Requests per second limit")
	flag.Parse()

	log.Printf("Starting load test on %s", *targetURL)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var acceptedCount, limitedCount, errorCount atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			for seq := 0; ; seq++ {
				select {
				case <-ctx.Done():
					return
				default:
					limiter.Wait(ctx)

					doc := event{
						ID:             uuid.NewString(),
						EventType:      eventTypes[seq%len(eventTypes)],
						MedicationID:   uuid.NewString(),
						MedicationName: fmt.Sprintf("Load Test Med %d", workerID),
						PatientID:      *patientID,
						PatientName:    "Load Test Patient",
						CaregiverID:    *caregiverID,
						Timestamp:      time.Now().UTC(),
						SyncStatus:     "pending",
					}
					payload, err := json.Marshal(doc)
					if err != nil {
						continue // Should not happen
					}

					req, err := http.NewRequestWithContext(ctx, http.MethodPost, *targetURL, bytes.NewReader(payload))
					if err != nil {
						continue
					}
					req.Header.Set("Content-Type", "application/json")
					req.Header.Set("X-Device-Key", *deviceKey)

					resp, err := client.Do(req)
					if err != nil {
						errorCount.Add(1)
						continue
					}

					switch resp.StatusCode {
					case http.StatusAccepted:
						acceptedCount.Add(1)
					case http.StatusTooManyRequests:
						limitedCount.Add(1)
					default:
						errorCount.Add(1)
					}
					resp.Body.Close()
				}
			}
		}(i)
	}

	wg.Wait()

	totalRequests := acceptedCount.Load() + limitedCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Accepted (202): %d", acceptedCount.Load())
	log.Printf("Rate Limited (429): %d", limitedCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
}
