// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the contact store as tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/contacts/internal/apperr"
	"github.com/starford/contacts/internal/contactstore"
	"github.com/starford/contacts/internal/models"
)

const schemaURI = "contacts://schema"

// Server wraps the MCP server with contact tools.
type Server struct {
	mcp       *server.MCPServer
	store     *contactstore.Store
	avatarDir string
}

// New creates a new MCP server with all contact tools registered. When
// avatarDir is non-empty the set_avatar tool is registered as well.
func New(store *contactstore.Store, avatarDir string) *Server {
	s := &Server{store: store, avatarDir: avatarDir}

	s.mcp = server.NewMCPServer(
		"Contacts",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_contacts",
		mcp.WithDescription("List contacts sorted by last then first name. "+
			"An optional query filters by case-insensitive substring of first or last name."),
		mcp.WithString("query", mcp.Description("Search text (empty for all contacts)")),
	), s.listContacts)

	s.mcp.AddTool(mcp.NewTool("get_contact",
		mcp.WithDescription("Read one contact by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Contact id")),
	), s.getContact)

	s.mcp.AddTool(mcp.NewTool("create_contact",
		append([]mcp.ToolOption{
			mcp.WithDescription("Create a contact. Every field is optional; read the record format via " +
				"get_contact_schema or the " + schemaURI + " resource."),
		}, fieldOptions()...)...,
	), s.createContact)

	s.mcp.AddTool(mcp.NewTool("update_contact",
		append([]mcp.ToolOption{
			mcp.WithDescription("Update a contact. Only the fields passed are changed."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Contact id")),
		}, fieldOptions()...)...,
	), s.updateContact)

	s.mcp.AddTool(mcp.NewTool("delete_contact",
		mcp.WithDescription("Delete a contact permanently."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Contact id")),
	), s.deleteContact)

	s.mcp.AddTool(mcp.NewTool("set_favorite",
		mcp.WithDescription("Mark or unmark a contact as favorite."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Contact id")),
		mcp.WithBoolean("favorite", mcp.Required(), mcp.Description("New favorite flag")),
	), s.setFavorite)

	s.mcp.AddTool(mcp.NewTool("get_contact_schema",
		mcp.WithDescription("Returns the contact record format. "+
			"Call this before creating or updating contacts."),
	), s.getContactSchema)

	if avatarDir != "" {
		s.mcp.AddTool(mcp.NewTool("set_avatar",
			mcp.WithDescription("Store an avatar image for a contact and point its avatar field at it. "+
				"Accepts an http(s) URL or a base64 data: URI."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Contact id")),
			mcp.WithString("url", mcp.Required(), mcp.Description("Image URL or data:image/...;base64,... URI")),
		), s.setAvatar)
	}

	s.mcp.AddResource(
		mcp.NewResource(schemaURI, "Contact Record Format",
			mcp.WithResourceDescription("Fields of a contact record and how updates merge."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSchemaResource,
	)

	return s
}

func fieldOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("first", mcp.Description("First name")),
		mcp.WithString("last", mcp.Description("Last name")),
		mcp.WithString("avatar", mcp.Description("Avatar image URL")),
		mcp.WithString("twitter", mcp.Description("Twitter handle")),
		mcp.WithString("notes", mcp.Description("Free-form notes")),
		mcp.WithBoolean("favorite", mcp.Description("Favorite flag")),
	}
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// patchFromArgs builds a patch holding only the arguments actually passed.
func patchFromArgs(args map[string]any) (models.ContactPatch, error) {
	var p models.ContactPatch
	fields := map[string]**string{
		"first":   &p.First,
		"last":    &p.Last,
		"avatar":  &p.Avatar,
		"twitter": &p.Twitter,
		"notes":   &p.Notes,
	}
	for name, dst := range fields {
		raw, ok := args[name]
		if !ok || raw == nil {
			continue
		}
		v, ok := raw.(string)
		if !ok {
			return p, fmt.Errorf("%s must be a string", name)
		}
		*dst = models.String(v)
	}
	if raw, ok := args["favorite"]; ok && raw != nil {
		v, ok := raw.(bool)
		if !ok {
			return p, fmt.Errorf("favorite must be a boolean")
		}
		p.Favorite = models.Bool(v)
	}
	return p, nil
}

func contactResult(c models.Contact) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(c, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func storeError(id string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listContacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	contacts, err := s.store.List(ctx, req.GetString("query", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(contacts, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getContact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, ok := s.store.Get(ctx, id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return contactResult(c), nil
}

func (s *Server) createContact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patch, err := patchFromArgs(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.store.Create(ctx, patch)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return contactResult(c), nil
}

func (s *Server) updateContact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	patch, err := patchFromArgs(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return storeError(id, err), nil
	}
	return contactResult(c), nil
}

func (s *Server) deleteContact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return storeError(id, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) setFavorite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fav, err := req.RequireBool("favorite")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.store.SetFavorite(ctx, id, fav)
	if err != nil {
		return storeError(id, err), nil
	}
	return contactResult(c), nil
}

func (s *Server) getContactSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ContactSchema), nil
}

func (s *Server) readSchemaResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      schemaURI,
			MIMEType: "text/markdown",
			Text:     ContactSchema,
		},
	}, nil
}
