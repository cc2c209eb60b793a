package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type httpRoute struct {
	method  string
	pattern string
	fn      runtime.HandlerFunc
}

// httpRoutes exposes a DirectoryServer as REST. Status errors are turned
// into HTTP codes the same way the gateway does.
type httpRoutes struct {
	server    DirectoryServer
	marshaler runtime.Marshaler
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (rt *httpRoutes) listCompanies(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := rt.server.ListCompanies(r.Context(), &ListCompaniesRequest{})
	rt.respond(w, http.StatusOK, resp, err)
}

func (rt *httpRoutes) getCompany(w http.ResponseWriter, r *http.Request, params map[string]string) {
	sid, err := pathInt(params, "sid")
	if err != nil {
		rt.writeError(w, err)
		return
	}
	resp, err := rt.server.GetCompany(r.Context(), &GetCompanyRequest{SID: sid})
	rt.respond(w, http.StatusOK, resp, err)
}

func (rt *httpRoutes) getCompanyByCIK(w http.ResponseWriter, r *http.Request, params map[string]string) {
	cik, err := pathInt(params, "cik")
	if err != nil {
		rt.writeError(w, err)
		return
	}
	resp, err := rt.server.GetCompanyByCIK(r.Context(), &GetCompanyByCIKRequest{CIK: cik})
	rt.respond(w, http.StatusOK, resp, err)
}

func (rt *httpRoutes) upsertCompany(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req UpsertCompanyRequest
	if err := rt.decode(r, &req); err != nil {
		rt.writeError(w, err)
		return
	}
	resp, err := rt.server.UpsertCompany(r.Context(), &req)
	code := http.StatusOK
	if err == nil && resp.Created {
		code = http.StatusCreated
	}
	rt.respond(w, code, resp, err)
}

func (rt *httpRoutes) deleteCompany(w http.ResponseWriter, r *http.Request, params map[string]string) {
	sid, err := pathInt(params, "sid")
	if err != nil {
		rt.writeError(w, err)
		return
	}
	_, err = rt.server.DeleteCompany(r.Context(), &DeleteCompanyRequest{SID: sid})
	if err != nil {
		rt.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *httpRoutes) filterCompanies(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req FilterCompaniesRequest
	if err := rt.decode(r, &req); err != nil {
		rt.writeError(w, err)
		return
	}
	resp, err := rt.server.FilterCompanies(r.Context(), &req)
	rt.respond(w, http.StatusOK, resp, err)
}

func (rt *httpRoutes) decode(r *http.Request, v any) error {
	if err := rt.marshaler.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return status.Errorf(codes.InvalidArgument, "malformed request body: %v", err)
	}
	return nil
}

func (rt *httpRoutes) respond(w http.ResponseWriter, code int, v any, err error) {
	if err != nil {
		rt.writeError(w, err)
		return
	}
	rt.write(w, code, v)
}

func (rt *httpRoutes) writeError(w http.ResponseWriter, err error) {
	st := status.Convert(err)
	code := runtime.HTTPStatusFromCode(st.Code())
	rt.write(w, code, errorBody{Code: code, Message: st.Message()})
}

func (rt *httpRoutes) write(w http.ResponseWriter, code int, v any) {
	body, err := rt.marshaler.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", rt.marshaler.ContentType(v))
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func pathInt(params map[string]string, name string) (int64, error) {
	v, err := strconv.ParseInt(params[name], 10, 64)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "invalid %s %q", name, params[name])
	}
	return v, nil
}
