package main

import (
	"encoding/json"
	"fmt"
	"os"
)

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "encode output:", err)
		return
	}
	fmt.Println(string(b))
}
