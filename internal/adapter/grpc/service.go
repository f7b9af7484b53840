package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names of gstk.v1.TaxService
const (
	TaxService_ComputeTax_FullMethodName       = "/gstk.v1.TaxService/ComputeTax"
	TaxService_ReverseCalculate_FullMethodName = "/gstk.v1.TaxService/ReverseCalculate"
	TaxService_ComputeB2B_FullMethodName       = "/gstk.v1.TaxService/ComputeB2B"
)

// TaxServiceServer is the server API for gstk.v1.TaxService.
// Requests and responses are google.protobuf.Struct messages.
type TaxServiceServer interface {
	ComputeTax(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReverseCalculate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ComputeB2B(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterTaxServiceServer registers srv on s
func RegisterTaxServiceServer(s grpc.ServiceRegistrar, srv TaxServiceServer) {
	s.RegisterService(&TaxService_ServiceDesc, srv)
}

// TaxService_ServiceDesc describes gstk.v1.TaxService for grpc.Server
var TaxService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "gstk.v1.TaxService",
	HandlerType: (*TaxServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ComputeTax",
			Handler:    taxServiceComputeTaxHandler,
		},
		{
			MethodName: "ReverseCalculate",
			Handler:    taxServiceReverseCalculateHandler,
		},
		{
			MethodName: "ComputeB2B",
			Handler:    taxServiceComputeB2BHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gstk/v1/tax.proto",
}

func taxServiceComputeTaxHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TaxServiceServer).ComputeTax(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TaxService_ComputeTax_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TaxServiceServer).ComputeTax(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func taxServiceReverseCalculateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TaxServiceServer).ReverseCalculate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TaxService_ReverseCalculate_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TaxServiceServer).ReverseCalculate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func taxServiceComputeB2BHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TaxServiceServer).ComputeB2B(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TaxService_ComputeB2B_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TaxServiceServer).ComputeB2B(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// TaxServiceClient is the client API for gstk.v1.TaxService
type TaxServiceClient interface {
	ComputeTax(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ReverseCalculate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ComputeB2B(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type taxServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewTaxServiceClient creates a client bound to cc
func NewTaxServiceClient(cc grpc.ClientConnInterface) TaxServiceClient {
	return &taxServiceClient{cc: cc}
}

func (c *taxServiceClient) ComputeTax(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, TaxService_ComputeTax_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *taxServiceClient) ReverseCalculate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, TaxService_ReverseCalculate_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *taxServiceClient) ComputeB2B(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, TaxService_ComputeB2B_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
