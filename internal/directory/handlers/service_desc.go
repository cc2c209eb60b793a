package handlers

import (
	"context"

	"github.com/gartstein/companydir/internal/directory/auth"
	"google.golang.org/grpc"
)

// DirectoryServer is the server API of directory.v1.DirectoryService.
type DirectoryServer interface {
	GetCompany(context.Context, *GetCompanyRequest) (*CompanyResponse, error)
	GetCompanyByCIK(context.Context, *GetCompanyByCIKRequest) (*CompanyResponse, error)
	ListCompanies(context.Context, *ListCompaniesRequest) (*ListCompaniesResponse, error)
	UpsertCompany(context.Context, *UpsertCompanyRequest) (*UpsertCompanyResponse, error)
	DeleteCompany(context.Context, *DeleteCompanyRequest) (*DeleteCompanyResponse, error)
	FilterCompanies(context.Context, *FilterCompaniesRequest) (*FilterCompaniesResponse, error)
}

// FullMethod returns the gRPC method path of a DirectoryService method.
func FullMethod(name string) string {
	return "/" + auth.ServiceName + "/" + name
}

var DirectoryServiceDesc = grpc.ServiceDesc{
	ServiceName: auth.ServiceName,
	HandlerType: (*DirectoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetCompany", DirectoryServer.GetCompany),
		unary("GetCompanyByCIK", DirectoryServer.GetCompanyByCIK),
		unary("ListCompanies", DirectoryServer.ListCompanies),
		unary("UpsertCompany", DirectoryServer.UpsertCompany),
		unary("DeleteCompany", DirectoryServer.DeleteCompany),
		unary("FilterCompanies", DirectoryServer.FilterCompanies),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "directory/v1/directory.proto",
}

func unary[Req, Resp any](name string, call func(DirectoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DirectoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DirectoryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
