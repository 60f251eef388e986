package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"

	"webshop/internal/catalog"
	"webshop/internal/model"
)

var customers = []model.CustomerInfo{
	{Name: "Ana Horvat", Address: "Ilica 10, Zagreb", Email: "ana@example.com"},
	{Name: "John Doe", Address: "123 Test St", Email: "john@example.com"},
	{Name: "Mei Tanaka", Address: "2-1 Marunouchi, Tokyo", Email: "mei@example.com"},
}

func main() {
	var (
		count      int
		outputFile string
		target     string
		seed       int64
	)
	flag.IntVar(&count, "count", 100, "number of order requests to generate")
	flag.StringVar(&outputFile, "output", "orders.requests.jsonl", "output file (empty skips the file)")
	flag.StringVar(&target, "target", "", "base url of a running webshop, e.g. http://localhost:8080")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	reqs := generateRequests(rand.New(rand.NewSource(seed)), count, len(catalog.DefaultCatalog()))
	if outputFile != "" {
		if err := writeRequests(outputFile, reqs); err != nil {
			log.Fatalf("generation failed: %v", err)
		}
	}
	if target != "" {
		postRequests(&http.Client{Timeout: 10 * time.Second}, target, reqs)
	}
}

// generateRequests builds valid requests of 1-3 lines against product ids 1..nProducts.
func generateRequests(rng *rand.Rand, count int, nProducts int) []model.OrderRequest {
	reqs := make([]model.OrderRequest, 0, count)
	for i := 0; i < count; i++ {
		ci := customers[rng.Intn(len(customers))]
		lines := 1 + rng.Intn(3)
		items := make([]model.OrderItemRequest, 0, lines)
		for j := 0; j < lines; j++ {
			items = append(items, model.OrderItemRequest{
				ProductID: model.Int64(int64(1 + rng.Intn(nProducts))),
				Quantity:  1 + rng.Intn(3),
			})
		}
		reqs = append(reqs, model.OrderRequest{CustomerInfo: &ci, Items: items})
	}
	return reqs
}

func writeRequests(path string, reqs []model.OrderRequest) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for i := range reqs {
		if err := enc.Encode(&reqs[i]); err != nil {
			return fmt.Errorf("encode request %d: %w", i+1, err)
		}
	}
	log.Printf("generated %d order requests to %s", len(reqs), path)
	return nil
}

// postRequests sends every request and tallies responses by status code.
func postRequests(client *http.Client, target string, reqs []model.OrderRequest) map[int]int {
	statuses := make(map[int]int)
	for i := range reqs {
		b, err := json.Marshal(&reqs[i])
		if err != nil {
			log.Printf("encode request %d: %v", i+1, err)
			continue
		}
		resp, err := client.Post(target+"/api/orders", "application/json", bytes.NewReader(b))
		if err != nil {
			log.Printf("post request %d: %v", i+1, err)
			statuses[0]++
			continue
		}
		resp.Body.Close()
		statuses[resp.StatusCode]++
	}
	log.Printf("posted %d requests to %s: %v", len(reqs), target, statuses)
	return statuses
}
