package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"wedding-rsvp/internal/handler"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/service"
)

func startCLI(ctx context.Context, rsvpHandler *handler.RSVPHandler, guests *service.GuestService) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Println("\nCommands:")
		fmt.Println("  1. Add guest")
		fmt.Println("  2. Send invitation")
		fmt.Println("  3. View all guests")
		fmt.Println("  4. View guests by status")
		fmt.Print("\nEnter command (1-4): ")

		if !scanner.Scan() {
			return
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			addGuest(ctx, scanner, guests)
		case "2":
			sendInvitation(ctx, scanner, rsvpHandler)
		case "3":
			viewGuests(ctx, guests)
		case "4":
			viewGuestsByStatus(ctx, scanner, guests)
		default:
			fmt.Println("Invalid command. Please try again.")
		}
	}
}

func prompt(scanner *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(scanner.Text()), true
}

func addGuest(ctx context.Context, scanner *bufio.Scanner, guests *service.GuestService) {
	name, ok := prompt(scanner, "Enter guest name: ")
	if !ok {
		return
	}
	phone, ok := prompt(scanner, "Enter phone number (with country code, e.g., 972501234567): ")
	if !ok {
		return
	}
	var plusOnes int
	if raw, ok := prompt(scanner, "Plus ones allowed (default 0): "); ok && raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &plusOnes); err != nil {
			fmt.Println("Invalid number.")
			return
		}
	}

	g, err := guests.Create(ctx, models.CreateInput{Name: name, Phone: phone, PlusOnesAllowed: plusOnes})
	if err != nil {
		fmt.Printf("❌ Error adding guest: %v\n", err)
		return
	}
	fmt.Printf("✅ Guest added: %s (%s)\n", g.ID, g.GuestURL)
}

func sendInvitation(ctx context.Context, scanner *bufio.Scanner, rsvpHandler *handler.RSVPHandler) {
	if rsvpHandler == nil {
		fmt.Println("WhatsApp is not enabled (set WHATSAPP_ENABLED=true).")
		return
	}
	id, ok := prompt(scanner, "Enter guest id: ")
	if !ok {
		return
	}

	fmt.Printf("\nSending invitation to %s...\n", id)
	if _, err := rsvpHandler.Send(ctx, id); err != nil {
		fmt.Printf("❌ Error sending invitation: %v\n", err)
	} else {
		fmt.Printf("✅ Invitation sent successfully!\n")
	}
}

func viewGuests(ctx context.Context, guests *service.GuestService, status ...models.InvitationStatus) {
	list, err := guests.FindAll(ctx, status...)
	if err != nil {
		fmt.Printf("❌ Error listing guests: %v\n", err)
		return
	}
	if len(list) == 0 {
		fmt.Println("\nNo guests found.")
		return
	}

	fmt.Printf("\n📋 Guests (%d total):\n", len(list))
	fmt.Println(strings.Repeat("-", 60))
	for _, guest := range list {
		fmt.Printf("Name: %s\n", guest.Name)
		fmt.Printf("ID: %s\n", guest.ID)
		if guest.Phone != "" {
			fmt.Printf("Phone: %s\n", guest.Phone)
		}
		fmt.Printf("Status: %s\n", guest.Status)
		fmt.Printf("Link: %s\n", guest.GuestURL)
		if guest.LimitDate != nil {
			fmt.Printf("Respond by: %s\n", guest.LimitDate.Format("2006-01-02 15:04"))
		}
		fmt.Println(strings.Repeat("-", 60))
	}
}

func viewGuestsByStatus(ctx context.Context, scanner *bufio.Scanner, guests *service.GuestService) {
	fmt.Println("\nSelect status:")
	fmt.Println("  1. Not opened")
	fmt.Println("  2. Accepted")
	fmt.Println("  3. Rejected")

	choice, ok := prompt(scanner, "Enter choice (1-3): ")
	if !ok {
		return
	}

	var status models.InvitationStatus
	switch choice {
	case "1":
		status = models.StatusNotOpen
	case "2":
		status = models.StatusAccepted
	case "3":
		status = models.StatusRejected
	default:
		fmt.Println("Invalid choice.")
		return
	}
	viewGuests(ctx, guests, status)
}
