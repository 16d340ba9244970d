package riva

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// The offline recognition subset of riva_asr.proto, described at runtime so
// no generated package is needed. Field numbers match the upstream schema.

const (
	asrPackage      = "nvidia.riva.asr"
	recognizeMethod = "/nvidia.riva.asr.RivaSpeechRecognition/Recognize"

	encodingLinearPCM = 1
)

var asrFile = mustBuildASRFile()

var (
	recognizeRequestDesc  = asrFile.Messages().ByName("RecognizeRequest")
	recognizeResponseDesc = asrFile.Messages().ByName("RecognizeResponse")
	recognitionConfigDesc = asrFile.Messages().ByName("RecognitionConfig")
	speechContextDesc     = asrFile.Messages().ByName("SpeechContext")
	resultDesc            = asrFile.Messages().ByName("SpeechRecognitionResult")
	alternativeDesc       = asrFile.Messages().ByName("SpeechRecognitionAlternative")
)

type fieldSpec struct {
	name     string
	number   int32
	kind     descriptorpb.FieldDescriptorProto_Type
	repeated bool
	typeName string
}

func messageProto(name string, fields ...fieldSpec) *descriptorpb.DescriptorProto {
	msg := &descriptorpb.DescriptorProto{Name: proto.String(name)}
	for _, f := range fields {
		label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
		if f.repeated {
			label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
		}
		field := &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(f.name),
			Number: proto.Int32(f.number),
			Type:   f.kind.Enum(),
			Label:  label.Enum(),
		}
		if f.typeName != "" {
			field.TypeName = proto.String("." + asrPackage + "." + f.typeName)
		}
		msg.Field = append(msg.Field, field)
	}
	return msg
}

func buildASRFile() (protoreflect.FileDescriptor, error) {
	const (
		tString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
		tInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
		tBool    = descriptorpb.FieldDescriptorProto_TYPE_BOOL
		tFloat   = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
		tBytes   = descriptorpb.FieldDescriptorProto_TYPE_BYTES
		tEnum    = descriptorpb.FieldDescriptorProto_TYPE_ENUM
		tMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	)

	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("livesub/riva_asr_subset.proto"),
		Package: proto.String(asrPackage),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("AudioEncoding"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("ENCODING_UNSPECIFIED"), Number: proto.Int32(0)},
				{Name: proto.String("LINEAR_PCM"), Number: proto.Int32(encodingLinearPCM)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			messageProto("SpeechContext",
				fieldSpec{name: "phrases", number: 1, kind: tString, repeated: true},
				fieldSpec{name: "boost", number: 4, kind: tFloat},
			),
			messageProto("RecognitionConfig",
				fieldSpec{name: "encoding", number: 1, kind: tEnum, typeName: "AudioEncoding"},
				fieldSpec{name: "sample_rate_hertz", number: 2, kind: tInt32},
				fieldSpec{name: "language_code", number: 3, kind: tString},
				fieldSpec{name: "max_alternatives", number: 4, kind: tInt32},
				fieldSpec{name: "speech_contexts", number: 6, kind: tMessage, repeated: true, typeName: "SpeechContext"},
				fieldSpec{name: "audio_channel_count", number: 7, kind: tInt32},
				fieldSpec{name: "enable_automatic_punctuation", number: 11, kind: tBool},
				fieldSpec{name: "model", number: 13, kind: tString},
			),
			messageProto("RecognizeRequest",
				fieldSpec{name: "config", number: 1, kind: tMessage, typeName: "RecognitionConfig"},
				fieldSpec{name: "audio", number: 2, kind: tBytes},
			),
			messageProto("SpeechRecognitionAlternative",
				fieldSpec{name: "transcript", number: 1, kind: tString},
				fieldSpec{name: "confidence", number: 2, kind: tFloat},
			),
			messageProto("SpeechRecognitionResult",
				fieldSpec{name: "alternatives", number: 1, kind: tMessage, repeated: true, typeName: "SpeechRecognitionAlternative"},
				fieldSpec{name: "channel_tag", number: 2, kind: tInt32},
				fieldSpec{name: "audio_processed", number: 3, kind: tFloat},
			),
			messageProto("RecognizeResponse",
				fieldSpec{name: "results", number: 1, kind: tMessage, repeated: true, typeName: "SpeechRecognitionResult"},
			),
		},
	}
	return protodesc.NewFile(file, nil)
}

func mustBuildASRFile() protoreflect.FileDescriptor {
	fd, err := buildASRFile()
	if err != nil {
		panic(fmt.Sprintf("riva: build asr descriptor: %v", err))
	}
	return fd
}

func field(md protoreflect.MessageDescriptor, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := md.Fields().ByName(name)
	if fd == nil {
		panic(fmt.Sprintf("riva: %s has no field %q", md.FullName(), name))
	}
	return fd
}
