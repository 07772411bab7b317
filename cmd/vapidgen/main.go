// Command vapidgen prints a fresh VAPID key pair for web push.
package main

import (
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"

	"onechurch/logger"
)

func main() {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		logger.Error.Fatalf("Failed to generate VAPID keys: %v", err)
	}

	fmt.Println("Add these to your .env file:")
	fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
	fmt.Println("VAPID_SUBJECT=mailto:admin@onechurch.app")
}
