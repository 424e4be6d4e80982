// Command planctl runs maintenance tasks against the meal-hub storage:
// catalog seeding, shopping list reconciliation and offline exports.
package main

import (
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	Execute()
}
