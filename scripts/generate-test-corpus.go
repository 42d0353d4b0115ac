//go:build ignore

// generate-test-corpus emits a synthetic multi-language source tree for
// exercising the indexer at scale.
// Usage: go run scripts/generate-test-corpus.go -files 600 -output testdata/corpus
//
// Files rotate through all six supported languages (Python, TypeScript,
// JavaScript, Rust, Go, Java) and contain service-style types with
// cross-file call references, so both the parser fan-out and the phantom
// resolver get realistic load.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 600, "Number of files to generate")
	outputDir = flag.String("output", "testdata/corpus", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var nouns = []string{
	"User", "Order", "Invoice", "Payment", "Session", "Catalog",
	"Shipment", "Account", "Report", "Audit", "Token", "Quota",
}

var verbs = []string{
	"create", "update", "delete", "validate", "process", "fetch",
	"archive", "notify", "reconcile", "export",
}

var goTemplate = `package %[1]s

import "context"

// %[2]sService coordinates %[3]s operations.
type %[2]sService struct {
	store map[string]string
}

func New%[2]sService() *%[2]sService {
	return &%[2]sService{store: make(map[string]string)}
}

func (s *%[2]sService) %[4]s%[2]s(ctx context.Context, id string) error {
	s.store[id] = "%[4]s"
	return nil
}

func %[4]sAll(ctx context.Context, svc *%[2]sService) error {
	return svc.%[4]s%[2]s(ctx, "batch")
}
`

var pyTemplate = `class %[1]sService:
    """Coordinates %[2]s operations."""

    def __init__(self):
        self.store = {}

    def %[3]s_%[2]s(self, item_id):
        self.store[item_id] = "%[3]s"
        return item_id


def %[3]s_all(service):
    return service.%[3]s_%[2]s("batch")
`

var tsTemplate = `export interface %[1]sRecord {
  id: string;
  status: string;
}

export class %[1]sService {
  private store = new Map<string, %[1]sRecord>();

  %[3]s%[1]s(id: string): %[1]sRecord {
    const record = { id, status: "%[3]s" };
    this.store.set(id, record);
    return record;
  }
}

export function %[3]sAll(service: %[1]sService): %[1]sRecord {
  return service.%[3]s%[1]s("batch");
}
`

var jsTemplate = `export class %[1]sService {
  constructor() {
    this.store = new Map();
  }

  %[3]s%[1]s(id) {
    this.store.set(id, "%[3]s");
    return id;
  }
}

export function %[3]sAll(service) {
  return service.%[3]s%[1]s("batch");
}
`

var rustTemplate = `use std::collections::HashMap;

pub struct %[1]sService {
    store: HashMap<String, String>,
}

impl %[1]sService {
    pub fn new() -> Self {
        Self { store: HashMap::new() }
    }

    pub fn %[3]s_%[2]s(&mut self, id: &str) -> bool {
        self.store.insert(id.to_string(), "%[3]s".to_string());
        true
    }
}

pub fn %[3]s_all(service: &mut %[1]sService) -> bool {
    service.%[3]s_%[2]s("batch")
}
`

var javaTemplate = `package corpus;

import java.util.HashMap;
import java.util.Map;

public class %[1]sService {
    private final Map<String, String> store = new HashMap<>();

    public String %[3]s%[1]s(String id) {
        store.put(id, "%[3]s");
        return id;
    }

    public static String %[3]sAll(%[1]sService service) {
        return service.%[3]s%[1]s("batch");
    }
}
`

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for i := 0; i < *numFiles; i++ {
		noun := nouns[rng.Intn(len(nouns))]
		verb := verbs[rng.Intn(len(verbs))]
		lower := strings.ToLower(noun)

		var name, content string
		switch i % 6 {
		case 0:
			name = fmt.Sprintf("py/%s_%d.py", lower, i)
			content = fmt.Sprintf(pyTemplate, noun, lower, verb)
		case 1:
			name = fmt.Sprintf("ts/%s_%d.ts", lower, i)
			content = fmt.Sprintf(tsTemplate, noun, lower, verb)
		case 2:
			name = fmt.Sprintf("js/%s_%d.js", lower, i)
			content = fmt.Sprintf(jsTemplate, noun, lower, verb)
		case 3:
			name = fmt.Sprintf("rs/%s_%d.rs", lower, i)
			content = fmt.Sprintf(rustTemplate, noun, lower, verb)
		case 4:
			name = fmt.Sprintf("go/%s_%d.go", lower, i)
			content = fmt.Sprintf(goTemplate, lower, noun, lower, verb)
		case 5:
			name = fmt.Sprintf("java/%s_%d.java", lower, i)
			content = fmt.Sprintf(javaTemplate, noun, lower, verb)
		}

		path := filepath.Join(*outputDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	fmt.Printf("wrote %d files under %s\n", *numFiles, *outputDir)
}
