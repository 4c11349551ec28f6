// handlers/vote_routes.go
package handlers

import (
	"talent-registration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupVoteRoutes(app *fiber.App, voteService *services.VoteService) {
	// 🔓 Voting is open to the public; payment settles the intent
	app.Get("/contestants", voteService.ListContestants)
	app.Get("/contestants/:slug/votes", voteService.GetContestantVotes)
	app.Post("/votes", voteService.CreateVoteIntentHandler)
}
