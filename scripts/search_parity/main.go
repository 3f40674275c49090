// Command search_parity compares the search mirror against the register for a
// set of queries. It hits /search (Meilisearch-backed, with Postgres fallback)
// and /policies?search= (always Postgres) on the same instance and reports
// queries whose result sets drifted apart, which usually means the mirror
// index is stale and needs a reindex.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type queriesFile struct {
	Queries []string `json:"queries"`
}

type hit struct {
	Slug string `json:"slug"`
}

type searchEnvelope struct {
	Data struct {
		Hits []hit `json:"hits"`
	} `json:"data"`
	Meta struct {
		Degraded bool `json:"degraded"`
	} `json:"meta"`
}

type listEnvelope struct {
	Data []hit `json:"data"`
}

type comparison struct {
	Query       string
	MirrorSlugs []string
	StoreSlugs  []string
	Degraded    bool
	Match       bool
	Err         error
}

func main() {
	var (
		baseURL     string
		queriesPath string
		timeout     time.Duration
	)

	flag.StringVar(&baseURL, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&queriesPath, "queries", filepath.Join("scripts", "search_parity", "queries.json"), "Path to JSON queries file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	queries, err := loadQueries(queriesPath)
	if err != nil {
		log.Fatalf("failed to load queries: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results  []comparison
		drifted  int
		degraded int
	)

	for _, q := range queries {
		comp := compareQuery(client, baseURL, q)
		if comp.Err == nil && !comp.Match {
			drifted++
		}
		if comp.Degraded {
			degraded++
		}
		results = append(results, comp)
	}

	printReport(results)

	fmt.Printf("Drifted queries: %d, Degraded responses: %d\n", drifted, degraded)
	if drifted > 0 {
		os.Exit(1)
	}
}

func loadQueries(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var qf queriesFile
	if err := json.Unmarshal(data, &qf); err != nil {
		return nil, err
	}
	if len(qf.Queries) == 0 {
		return nil, fmt.Errorf("no queries defined in %s", path)
	}
	return qf.Queries, nil
}

func compareQuery(client *http.Client, base, query string) comparison {
	comp := comparison{Query: query}

	mirrorSlugs, degraded, err := fetchSearch(client, base, query)
	if err != nil {
		comp.Err = fmt.Errorf("search request failed: %w", err)
		return comp
	}
	storeSlugs, err := fetchListing(client, base, query)
	if err != nil {
		comp.Err = fmt.Errorf("listing request failed: %w", err)
		return comp
	}

	comp.MirrorSlugs = mirrorSlugs
	comp.StoreSlugs = storeSlugs
	comp.Degraded = degraded
	comp.Match = slugsEqual(mirrorSlugs, storeSlugs)
	return comp
}

func fetchSearch(client *http.Client, base, query string) ([]string, bool, error) {
	endpoint := strings.TrimRight(base, "/") + "/search?q=" + url.QueryEscape(query)
	resp, err := client.Get(endpoint)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var env searchEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, false, err
	}
	slugs := make([]string, 0, len(env.Data.Hits))
	for _, h := range env.Data.Hits {
		slugs = append(slugs, h.Slug)
	}
	return slugs, env.Meta.Degraded, nil
}

func fetchListing(client *http.Client, base, query string) ([]string, error) {
	endpoint := strings.TrimRight(base, "/") + "/policies?search=" + url.QueryEscape(query)
	resp, err := client.Get(endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var env listEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(env.Data))
	for _, h := range env.Data {
		slugs = append(slugs, h.Slug)
	}
	return slugs, nil
}

func slugsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func printReport(results []comparison) {
	fmt.Println("Search Parity Report")
	fmt.Println("====================")
	for _, res := range results {
		status := "OK"
		if res.Err != nil {
			status = "ERROR"
		} else if !res.Match {
			status = "DRIFT"
		}
		fmt.Printf("[%s] %q\n", status, res.Query)
		if res.Err != nil {
			fmt.Printf("  Error: %v\n", res.Err)
			continue
		}
		fmt.Printf("  Mirror hits: %d | Register hits: %d | Degraded: %t\n",
			len(res.MirrorSlugs), len(res.StoreSlugs), res.Degraded)
		if !res.Match {
			fmt.Printf("  Mirror: %s\n", strings.Join(res.MirrorSlugs, ", "))
			fmt.Printf("  Register: %s\n", strings.Join(res.StoreSlugs, ", "))
		}
	}
}
