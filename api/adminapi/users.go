package adminapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/thinkzone/keygate/api"
	"github.com/thinkzone/keygate/storage/model"
)

// registerUsers wires handlers using a UsersStore abstraction.
func registerUsers(r fiber.Router, users model.UsersStore) {
	g := r.Group("/users")

	g.Get("/", func(c *fiber.Ctx) error {
		list, err := users.List()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorServerError(err.Error()))
		}
		return c.JSON(list)
	})

	type createReq struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	g.Post("/", func(c *fiber.Ctx) error {
		var req createReq
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(api.ErrorInvalidRequest("invalid body"))
		}
		if req.Username == "" || req.Password == "" {
			return c.Status(fiber.StatusBadRequest).JSON(api.ErrorInvalidRequest("username and password are required"))
		}
		u, err := users.Create(req.Username, req.Password, req.DisplayName)
		if err != nil {
			var exists model.AlreadyExistsError
			if errors.As(err, &exists) {
				return c.Status(fiber.StatusConflict).JSON(api.ErrorAlreadyExists("user already exists"))
			}
			return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorServerError(err.Error()))
		}
		return c.Status(fiber.StatusCreated).JSON(u)
	})

	type updateReq struct {
		Password *string `json:"password"`
		Disabled *bool   `json:"disabled"`
	}
	g.Put("/:username", func(c *fiber.Ctx) error {
		username := c.Params("username")
		var req updateReq
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(api.ErrorInvalidRequest("invalid body"))
		}
		if req.Password != nil {
			if err := users.SetPassword(username, *req.Password); err != nil {
				return userStoreError(c, err)
			}
		}
		if req.Disabled != nil {
			if err := users.SetDisabled(username, *req.Disabled); err != nil {
				return userStoreError(c, err)
			}
		}
		return c.JSON(fiber.Map{"ok": true})
	})

	g.Delete("/:username", func(c *fiber.Ctx) error {
		if err := users.Delete(c.Params("username")); err != nil {
			return userStoreError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func userStoreError(c *fiber.Ctx, err error) error {
	var notFound model.NotFoundError
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(api.ErrorNotFound("user not found"))
	}
	return c.Status(fiber.StatusInternalServerError).JSON(api.ErrorServerError(err.Error()))
}
