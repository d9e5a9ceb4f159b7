// Command ingestor keeps Instagram tokens fresh and ingests new posts.
package main

import "github.com/connect3/instagram-ingestor/internal/adapters/driving/cli"

func main() {
	cli.Execute()
}
