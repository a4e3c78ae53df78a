package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"nmrdeposit/internal/gateway/repository/entrystore"
	"nmrdeposit/internal/gateway/service/catalog"
	"nmrdeposit/internal/gateway/service/deposition"
	"nmrdeposit/internal/star/document"
)

const (
	DepositionServiceName = "nmrdeposit.v1.DepositionService"

	GetStatusProcedure  = "/" + DepositionServiceName + "/GetStatus"
	ExportTextProcedure = "/" + DepositionServiceName + "/ExportText"
)

type GetStatusRequest struct {
	EntryID string `json:"entry_id"`
}

type GetStatusResponse struct {
	Status document.Status `json:"status"`
}

type ExportTextRequest struct {
	EntryID string `json:"entry_id"`
}

type ExportTextResponse struct {
	EntryID string `json:"entry_id"`
	Text    string `json:"text"`
}

type DepositionHandler struct {
	svc *deposition.Service
}

func NewDepositionHandler(svc *deposition.Service) *DepositionHandler {
	return &DepositionHandler{svc: svc}
}

func (h *DepositionHandler) GetStatus(ctx context.Context, req *connect.Request[GetStatusRequest]) (*connect.Response[GetStatusResponse], error) {
	entryID := strings.TrimSpace(req.Msg.EntryID)
	if entryID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("entry_id is required"))
	}
	st, err := h.svc.Status(ctx, entryID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetStatusResponse{Status: st}), nil
}

func (h *DepositionHandler) ExportText(ctx context.Context, req *connect.Request[ExportTextRequest]) (*connect.Response[ExportTextResponse], error) {
	entryID := strings.TrimSpace(req.Msg.EntryID)
	if entryID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("entry_id is required"))
	}
	text, err := h.svc.Export(ctx, entryID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ExportTextResponse{EntryID: entryID, Text: text}), nil
}

// NewDepositionServiceHandler returns the path prefix and handler serving
// every procedure of the deposition service.
func NewDepositionServiceHandler(h *DepositionHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
	getStatus := connect.NewUnaryHandler(GetStatusProcedure, h.GetStatus, opts...)
	exportText := connect.NewUnaryHandler(ExportTextProcedure, h.ExportText, opts...)
	return "/" + DepositionServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case GetStatusProcedure:
			getStatus.ServeHTTP(w, r)
		case ExportTextProcedure:
			exportText.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func toConnectError(err error) error {
	code := connect.CodeInternal
	switch {
	case errors.Is(err, entrystore.ErrNotFound), errors.Is(err, document.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, deposition.ErrEntryRequired):
		code = connect.CodeInvalidArgument
	case errors.Is(err, catalog.ErrUnknownVersion), errors.Is(err, document.ErrStructure):
		code = connect.CodeFailedPrecondition
	}
	return connect.NewError(code, err)
}
