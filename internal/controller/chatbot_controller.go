package controller

import (
	"chat-lens-be/internal/dto"
	"chat-lens-be/internal/pkg/serverutils"
	"chat-lens-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatbotController interface {
	RegisterRoutes(r fiber.Router)
	CreateConversation(ctx *fiber.Ctx) error
	SubmitQuery(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	GetStatus(ctx *fiber.Ctx) error
	CancelTurn(ctx *fiber.Ctx) error
	DeleteConversation(ctx *fiber.Ctx) error
	ExportConversation(ctx *fiber.Ctx) error
}

type chatbotController struct {
	chatbotService service.IChatbotService
}

func NewChatbotController(chatbotService service.IChatbotService) IChatbotController {
	return &chatbotController{
		chatbotService: chatbotService,
	}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chatbot/v1/conversations")
	h.Post("", c.CreateConversation)
	h.Post(":id/query", c.SubmitQuery)
	h.Get(":id/history", c.GetHistory)
	h.Get(":id/status", c.GetStatus)
	h.Post(":id/cancel", c.CancelTurn)
	h.Get(":id/export", c.ExportConversation)
	h.Delete(":id", c.DeleteConversation)
}

func (c *chatbotController) CreateConversation(ctx *fiber.Ctx) error {
	res, err := c.chatbotService.CreateConversation(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create conversation", res))
}

// SubmitQuery starts a turn. With ?wait=true it answers once the assistant
// turn is appended; otherwise it returns 202 right after the user turn.
func (c *chatbotController) SubmitQuery(ctx *fiber.Ctx) error {
	id, err := conversationId(ctx)
	if err != nil {
		return err
	}

	var req dto.SubmitQueryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	wait := ctx.QueryBool("wait", false)
	res, err := c.chatbotService.SubmitQuery(ctx.UserContext(), id, &req, wait)
	if err != nil {
		return err
	}

	if !res.Accepted {
		return ctx.JSON(serverutils.SuccessResponse("Query ignored", res))
	}
	if !wait {
		return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Query accepted", res))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success answer query", res))
}

// GetHistory pages the transcript with ?limit and ?offset.
func (c *chatbotController) GetHistory(ctx *fiber.Ctx) error {
	id, err := conversationId(ctx)
	if err != nil {
		return err
	}

	var query dto.HistoryQuery
	if err := ctx.QueryParser(&query); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid pagination")
	}
	if err := serverutils.ValidateRequest(query); err != nil {
		return err
	}

	res, err := c.chatbotService.GetHistory(ctx.UserContext(), id, query)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get history", res))
}

func (c *chatbotController) GetStatus(ctx *fiber.Ctx) error {
	id, err := conversationId(ctx)
	if err != nil {
		return err
	}

	res, err := c.chatbotService.GetStatus(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get status", res))
}

func (c *chatbotController) CancelTurn(ctx *fiber.Ctx) error {
	id, err := conversationId(ctx)
	if err != nil {
		return err
	}

	res, err := c.chatbotService.CancelTurn(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success cancel turn", res))
}

func (c *chatbotController) DeleteConversation(ctx *fiber.Ctx) error {
	id, err := conversationId(ctx)
	if err != nil {
		return err
	}

	if err := c.chatbotService.DeleteConversation(ctx.UserContext(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete conversation", nil))
}

// ExportConversation returns the transcript as a Markdown download, or in
// the JSON envelope with ?format=json.
func (c *chatbotController) ExportConversation(ctx *fiber.Ctx) error {
	id, err := conversationId(ctx)
	if err != nil {
		return err
	}

	res, err := c.chatbotService.ExportConversation(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	if ctx.Query("format") == "json" {
		return ctx.JSON(serverutils.SuccessResponse("Success export conversation", res))
	}

	ctx.Attachment("conversation-" + id.String() + ".md")
	ctx.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
	return ctx.SendString(res.Markdown)
}

func conversationId(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid conversation id")
	}
	return id, nil
}
