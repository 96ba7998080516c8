package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	binary := flag.String("bin", "", "path to the monnet binary (default: search ./monnet)")
	datastore := flag.String("datastore", "", "optional DuckDB file passed to monnet mcp")
	flag.Parse()

	fmt.Println("🧪 Testing monnet MCP tools")
	fmt.Println("===========================")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	serverPath := *binary
	if serverPath == "" {
		serverPath = findServerBinary()
	}
	if serverPath == "" {
		log.Fatal("❌ monnet binary not found. Run: go build -o monnet .")
	}
	fmt.Println("✅ Test 1: monnet binary found")

	args := []string{"mcp", "--config", filepath.Join(os.TempDir(), "monnet-test-tools-absent")}
	if *datastore != "" {
		args = append(args, "--datastore", *datastore)
	}
	cmd := exec.Command(serverPath, args...)
	cmd.Stderr = os.Stderr
	transport := &mcp.CommandTransport{Command: cmd}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MCP server: %v", err)
	}
	defer session.Close()
	fmt.Println("✅ Test 2: Connected to MCP server")

	fmt.Println("\n✓ Test 3: Listing available tools")
	listResult, err := session.ListTools(ctx, nil)
	if err != nil {
		log.Fatalf("❌ Failed to list tools: %v", err)
	}
	fmt.Printf("  Found %d tools:\n", len(listResult.Tools))
	for _, tool := range listResult.Tools {
		fmt.Printf("  - %s: %s\n", tool.Name, tool.Description)
	}

	calls := []struct {
		name string
		args map[string]any
	}{
		{"collect_now", map[string]any{}},
		{"collect_now", map[string]any{}},
		{"list_families", map[string]any{}},
		{"get_snapshot", map[string]any{"family": "memory_info"}},
		{"list_armed_events", map[string]any{}},
		{"recent_events", map[string]any{"limit": 5}},
		{"event_counts", map[string]any{"hours": 24}},
		{"reset_identity", map[string]any{"identity": "high_cpu_usage"}},
		{"evaluate_value", map[string]any{"family": "disk_info", "value": 91.5}},
	}
	failed := 0
	for i, c := range calls {
		fmt.Printf("\n✓ Test %d: %s\n", i+4, c.name)
		res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: c.name, Arguments: c.args})
		switch {
		case err != nil:
			failed++
			fmt.Printf("  ❌ call failed: %v\n", err)
		case res.IsError:
			failed++
			fmt.Printf("  ❌ tool error: %s\n", preview(res))
		default:
			fmt.Printf("  ✅ %s\n", preview(res))
		}
	}

	fmt.Println("\n===========================")
	if failed > 0 {
		fmt.Printf("❌ %d tool calls failed\n", failed)
		os.Exit(1)
	}
	fmt.Println("✅ All MCP tool calling tests complete!")
	fmt.Println("\n💡 To test interactively, run: go run ./cmd/mcp-client ./monnet mcp")
}

func preview(res *mcp.CallToolResult) string {
	for _, content := range res.Content {
		if v, ok := content.(*mcp.TextContent); ok {
			text := v.Text
			if len(text) > 200 {
				text = text[:200] + "..."
			}
			return text
		}
	}
	return fmt.Sprintf("%d content items", len(res.Content))
}

func findServerBinary() string {
	candidates := []string{
		"./monnet",
		"../../monnet",
	}
	for _, p := range candidates {
		if abs, err := filepath.Abs(p); err == nil {
			if _, err := os.Stat(abs); err == nil {
				return abs
			}
		}
	}
	return ""
}
