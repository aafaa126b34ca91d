// Package inferencev1 defines the inference.v1.InferenceService gRPC contract.
//
// Messages are google.protobuf.Struct values so the service needs no generated
// code: a PredictRequest carries "modality" (string) and "features" (list of
// numbers); a PredictResponse carries "label" (0 or 1) and "probabilities"
// (list of numbers, one per class).
package inferencev1

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName       = "inference.v1.InferenceService"
	PredictMethodName = "/inference.v1.InferenceService/Predict"
)

// InferenceServiceClient is the client API for InferenceService.
type InferenceServiceClient interface {
	Predict(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type inferenceServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewInferenceServiceClient(cc grpc.ClientConnInterface) InferenceServiceClient {
	return &inferenceServiceClient{cc}
}

func (c *inferenceServiceClient) Predict(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, PredictMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// InferenceServiceServer is the server API for InferenceService.
type InferenceServiceServer interface {
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedInferenceServiceServer can be embedded to get forward compatible implementations.
type UnimplementedInferenceServiceServer struct{}

func (UnimplementedInferenceServiceServer) Predict(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, fmt.Errorf("method Predict not implemented")
}

func RegisterInferenceServiceServer(s grpc.ServiceRegistrar, srv InferenceServiceServer) {
	s.RegisterService(&InferenceService_ServiceDesc, srv)
}

func predictHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InferenceServiceServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PredictMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(InferenceServiceServer).Predict(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// InferenceService_ServiceDesc is the grpc.ServiceDesc for InferenceService.
var InferenceService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InferenceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Predict",
			Handler:    predictHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inference/v1/inference.proto",
}

// PredictRequest - декодированный запрос Predict
type PredictRequest struct {
	Modality string
	Features []float64
}

// PredictResponse - декодированный ответ Predict
type PredictResponse struct {
	Label         int
	Probabilities []float64
}

// EncodeRequest строит сообщение для отправки req
func EncodeRequest(req PredictRequest) *structpb.Struct {
	values := make([]*structpb.Value, len(req.Features))
	for i, f := range req.Features {
		values[i] = structpb.NewNumberValue(f)
	}
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"modality": structpb.NewStringValue(req.Modality),
			"features": structpb.NewListValue(&structpb.ListValue{Values: values}),
		},
	}
}

// DecodeRequest разбирает сообщение запроса
func DecodeRequest(msg *structpb.Struct) (PredictRequest, error) {
	var req PredictRequest
	if msg == nil {
		return req, fmt.Errorf("empty request")
	}

	req.Modality = msg.GetFields()["modality"].GetStringValue()
	features, err := numbers(msg, "features")
	if err != nil {
		return req, err
	}
	req.Features = features
	return req, nil
}

// EncodeResponse строит сообщение для отправки resp
func EncodeResponse(resp PredictResponse) *structpb.Struct {
	values := make([]*structpb.Value, len(resp.Probabilities))
	for i, p := range resp.Probabilities {
		values[i] = structpb.NewNumberValue(p)
	}
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"label":         structpb.NewNumberValue(float64(resp.Label)),
			"probabilities": structpb.NewListValue(&structpb.ListValue{Values: values}),
		},
	}
}

// DecodeResponse разбирает сообщение ответа
func DecodeResponse(msg *structpb.Struct) (PredictResponse, error) {
	var resp PredictResponse
	if msg == nil {
		return resp, fmt.Errorf("empty response")
	}

	label, ok := msg.GetFields()["label"]
	if !ok {
		return resp, fmt.Errorf("response has no label")
	}
	resp.Label = int(label.GetNumberValue())

	probabilities, err := numbers(msg, "probabilities")
	if err != nil {
		return resp, err
	}
	resp.Probabilities = probabilities
	return resp, nil
}

func numbers(msg *structpb.Struct, field string) ([]float64, error) {
	v, ok := msg.GetFields()[field]
	if !ok {
		return nil, fmt.Errorf("missing field %q", field)
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("field %q is not a list", field)
	}

	out := make([]float64, len(list.GetValues()))
	for i, item := range list.GetValues() {
		if _, ok := item.GetKind().(*structpb.Value_NumberValue); !ok {
			return nil, fmt.Errorf("field %q item %d is not a number", field, i)
		}
		out[i] = item.GetNumberValue()
	}
	return out, nil
}
